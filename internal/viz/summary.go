package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/san-kum/spiralsim/internal/analysis"
	"github.com/san-kum/spiralsim/internal/storage"
)

var summaryParams = []string{"d1", "d2", "beta", "L", "n", "t_start", "t_end", "dt", "method", "num_spiral_arms"}

// RenderSummary describes one stored run. now anchors the relative
// timestamp.
func RenderSummary(meta *storage.RunMetadata, now time.Time) string {
	var s strings.Builder
	s.WriteString(Title.Render(meta.Name) + "\n")
	s.WriteString(Subtle.Render(meta.ID) + "\n\n")

	s.WriteString(line("Started", humanize.RelTime(meta.Timestamp, now, "ago", "from now")))
	s.WriteString(line("Wall time", (time.Duration(meta.WallSeconds * float64(time.Second))).Round(time.Millisecond).String()))
	s.WriteString(line("Outputs", humanize.Comma(int64(meta.Outputs))))
	s.WriteString(line("Steps", fmt.Sprintf("%s (%s rejected)", humanize.Comma(int64(meta.Stats.Steps)), humanize.Comma(int64(meta.Stats.Rejected)))))
	s.WriteString(line("RHS calls", humanize.Comma(int64(meta.Stats.Evaluations))))
	s.WriteString(line("Size", humanize.Bytes(meta.TotalBytes())))

	if meta.Regime != "" {
		badge := meta.Regime
		if r, err := analysis.ParseRegime(meta.Regime); err == nil {
			badge = RegimeBadge(r)
		}
		s.WriteString(line("Regime", badge))
		s.WriteString(line("Window", fmt.Sprintf("%d rows, mean %.4g, std %.3g", meta.Window, meta.WindowMean, meta.WindowStd)))
	}
	if meta.Partial {
		s.WriteString(Failure.Render("incomplete: run stopped early") + "\n")
	}

	s.WriteString("\n" + Title.Render("PARAMETERS") + "\n")
	for _, k := range summaryParams {
		if v, ok := meta.Params[k]; ok {
			s.WriteString(line(k, v))
		}
	}

	for _, adv := range meta.Advisories {
		s.WriteString(Warning.Render("! "+adv) + "\n")
	}
	return Panel.Render(strings.TrimRight(s.String(), "\n"))
}

// RenderComparison places the summaries of several runs side by side.
func RenderComparison(metas []*storage.RunMetadata, now time.Time) string {
	panels := make([]string, len(metas))
	for i, m := range metas {
		panels[i] = RenderSummary(m, now)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, panels...)
}

// RenderRunList renders one line per run.
func RenderRunList(runs []storage.RunMetadata, now time.Time) string {
	if len(runs) == 0 {
		return Subtle.Render("no runs found")
	}

	nameWidth := 4
	for _, r := range runs {
		nameWidth = max(nameWidth, len(r.Name))
	}
	name := lipgloss.NewStyle().Width(nameWidth + 2)
	col := lipgloss.NewStyle().Width(16)

	var s strings.Builder
	s.WriteString(Subtle.Render(name.Render("NAME")+col.Render("STARTED")+col.Render("REGIME")+col.Render("OUTPUTS")+"SIZE") + "\n")
	for _, r := range runs {
		regime := r.Regime
		if regime == "" {
			regime = "-"
		}
		if r.Partial {
			regime += "*"
		}
		s.WriteString(name.Render(r.Name) +
			col.Render(humanize.RelTime(r.Timestamp, now, "ago", "from now")) +
			col.Render(regime) +
			col.Render(humanize.Comma(int64(r.Outputs))) +
			humanize.Bytes(r.TotalBytes()) + "\n")
	}
	return s.String()
}

// SortedParams returns the run parameters as sorted "key = value" lines.
func SortedParams(meta *storage.RunMetadata) []string {
	keys := make([]string, 0, len(meta.Params))
	for k := range meta.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("%s = %s", k, meta.Params[k])
	}
	return lines
}
