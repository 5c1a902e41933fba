package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/spiralsim/internal/dynamo"
	"github.com/san-kum/spiralsim/internal/sim"
)

const rateHistory = 120

type (
	ProgressMsg dynamo.Progress

	SegmentMsg struct {
		Segment int
		End     float64
		Steps   int
	}

	DoneMsg struct{ Err error }

	tickMsg time.Time
)

// Live is the progress view shown while a run executes.
type Live struct {
	name     string
	started  time.Time
	now      time.Time
	progress dynamo.Progress
	rates    []float64
	segments []SegmentMsg
	done     bool
	canceled bool
	err      error
}

func NewLive(name string, started time.Time) Live {
	return Live{name: name, started: started, now: started}
}

func (m Live) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/4, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.canceled = true
			return m, tea.Quit
		}
	case tickMsg:
		m.now = time.Time(msg)
		if m.done {
			return m, nil
		}
		return m, tick()
	case ProgressMsg:
		m.progress = dynamo.Progress(msg)
		m.rates = append(m.rates, msg.Rate)
		if len(m.rates) > rateHistory {
			m.rates = m.rates[len(m.rates)-rateHistory:]
		}
	case SegmentMsg:
		m.segments = append(m.segments, msg)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		if msg.Err == nil {
			m.progress.Fraction = 1
		}
		return m, tea.Quit
	}
	return m, nil
}

// Canceled reports whether the user quit before the run finished.
func (m Live) Canceled() bool { return m.canceled && !m.done }

func (m Live) Err() error { return m.err }

func (m Live) View() string {
	var s strings.Builder
	s.WriteString(Title.Render(strings.ToUpper(m.name)) + "\n\n")

	s.WriteString(ProgressBar(m.progress.Fraction, 40) + fmt.Sprintf(" %5.1f%%\n\n", 100*m.progress.Fraction))
	s.WriteString(line("t", fmt.Sprintf("%.2f", m.progress.T)))
	s.WriteString(line("Rate", fmt.Sprintf("%.2f time units/sec", m.progress.Rate)))
	s.WriteString(line("Elapsed", m.now.Sub(m.started).Round(time.Second).String()))

	if len(m.rates) > 1 {
		s.WriteString("\n" + asciigraph.Plot(m.rates, asciigraph.Height(4), asciigraph.Width(40), asciigraph.Caption("rate")) + "\n")
	}

	if len(m.segments) > 0 {
		last := m.segments[len(m.segments)-1]
		s.WriteString(line("Checkpoints", fmt.Sprintf("%d (t = %.2f, %s steps)", len(m.segments), last.End, humanize.Comma(int64(last.Steps)))))
	}

	switch {
	case m.err != nil:
		s.WriteString("\n" + Failure.Render("failed: "+m.err.Error()) + "\n")
	case m.done:
		s.WriteString("\n" + SparkHigh.Render("done") + "\n")
	default:
		s.WriteString("\n" + Subtle.Render("q: stop") + "\n")
	}
	return Panel.Render(s.String())
}

// Sender forwards progress reports to a running program.
func Sender(p *tea.Program) dynamo.ProgressSink {
	return dynamo.ProgressFunc(func(pr dynamo.Progress) {
		p.Send(ProgressMsg(pr))
	})
}

type checkpointNotifier struct {
	p    *tea.Program
	next sim.CheckpointSink
}

// NotifyCheckpoints reports each saved checkpoint to p after passing it
// to next, which may be nil.
func NotifyCheckpoints(p *tea.Program, next sim.CheckpointSink) sim.CheckpointSink {
	return &checkpointNotifier{p: p, next: next}
}

func (n *checkpointNotifier) SaveCheckpoint(ctx context.Context, cp sim.Checkpoint) error {
	if n.next != nil {
		if err := n.next.SaveCheckpoint(ctx, cp); err != nil {
			return err
		}
	}
	n.p.Send(SegmentMsg{Segment: cp.Segment, End: cp.End, Steps: cp.Stats.Steps})
	return nil
}
