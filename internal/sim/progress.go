package sim

import (
	"log/slog"
	"time"

	"github.com/san-kum/spiralsim/internal/dynamo"
)

const DefaultProgressInterval = 5 * time.Second

// ProgressTracker turns accepted integration steps into throttled progress
// reports: at most one per Interval of wall time. It only observes; nothing
// it does feeds back into the integration.
type ProgressTracker struct {
	Interval time.Duration

	start, end float64
	sink       dynamo.ProgressSink
	now        func() time.Time

	lastWall time.Time
	lastT    float64
}

func NewProgressTracker(start, end float64, sink dynamo.ProgressSink) *ProgressTracker {
	return NewProgressTrackerWithClock(start, end, sink, time.Now)
}

func NewProgressTrackerWithClock(start, end float64, sink dynamo.ProgressSink, now func() time.Time) *ProgressTracker {
	return &ProgressTracker{
		Interval: DefaultProgressInterval,
		start:    start,
		end:      end,
		sink:     sink,
		now:      now,
		lastWall: now(),
		lastT:    start,
	}
}

func (p *ProgressTracker) OnStep(t float64) {
	if p.sink == nil {
		return
	}

	now := p.now()
	elapsed := now.Sub(p.lastWall)
	if elapsed <= p.Interval {
		return
	}

	p.sink.Report(dynamo.Progress{
		T:        t,
		Fraction: (t - p.start) / (p.end - p.start),
		Rate:     (t - p.lastT) / elapsed.Seconds(),
	})
	p.lastWall = now
	p.lastT = t
}

// LogProgress reports progress as structured log lines.
func LogProgress(logger *slog.Logger) dynamo.ProgressSink {
	return dynamo.ProgressFunc(func(p dynamo.Progress) {
		logger.Info("progress",
			"pct", 100*p.Fraction,
			"t", p.T,
			"rate", p.Rate,
		)
	})
}
