package styles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ApplySummary is what `cosmetic apply` prints.
type ApplySummary struct {
	URL          string
	State        string
	Marker       string
	Suppressed   []string
	NetSelectors []string
	Rejected     []RejectedLine
	Stopped      bool
}

// RejectedLine is one rule the engine refused.
type RejectedLine struct {
	Rule   string
	Reason string
}

// HitLine is one row of `cosmetic hits`.
type HitLine struct {
	Selector string
	Hits     int
}

// ReportRenderer renders CLI reports.
type ReportRenderer struct {
	theme *Theme
}

// NewReportRenderer creates a renderer.
func NewReportRenderer(theme *Theme) *ReportRenderer {
	return &ReportRenderer{theme: theme}
}

// RenderApply renders the outcome of an offline run.
func (r *ReportRenderer) RenderApply(s ApplySummary) string {
	t := r.theme
	var b strings.Builder

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		t.Title.Render(s.URL), " ", t.StateBadge(s.State))
	b.WriteString(t.BoxHeader.Render(header))
	b.WriteString("\n")

	if s.Marker != "" {
		b.WriteString(t.Subtle.Render("marker "))
		b.WriteString(t.Normal.Render(s.Marker))
		b.WriteString("\n\n")
	}

	b.WriteString(t.Subtitle.Render("Suppressed"))
	b.WriteString(" ")
	b.WriteString(t.CountBadge(len(s.Suppressed), "node"))
	b.WriteString("\n")
	for _, n := range s.Suppressed {
		b.WriteString("  ")
		b.WriteString(t.Highlight.Render("-"))
		b.WriteString(" ")
		b.WriteString(t.Normal.Render(n))
		b.WriteString("\n")
	}

	if len(s.NetSelectors) > 0 {
		b.WriteString("\n")
		b.WriteString(t.Subtitle.Render("Collapsed resources"))
		b.WriteString("\n")
		for _, sel := range s.NetSelectors {
			b.WriteString("  ")
			b.WriteString(t.Subtle.Render(sel))
			b.WriteString("\n")
		}
	}

	if len(s.Rejected) > 0 {
		b.WriteString("\n")
		b.WriteString(t.WarningStyle.Render(fmt.Sprintf("Rejected %d rule(s)", len(s.Rejected))))
		b.WriteString("\n")
		for _, rej := range s.Rejected {
			b.WriteString("  ")
			b.WriteString(t.Normal.Render(rej.Rule))
			b.WriteString("\n    ")
			b.WriteString(t.ErrorStyle.Render(rej.Reason))
			b.WriteString("\n")
		}
	}

	if s.Stopped {
		b.WriteString("\n")
		b.WriteString(t.Subtle.Render("surveyor stopped after repeated misses"))
		b.WriteString("\n")
	}

	return t.Box.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderHits renders selector hit counts for a hostname.
func (r *ReportRenderer) RenderHits(hostname string, hits []HitLine) string {
	t := r.theme
	if len(hits) == 0 {
		return t.Subtle.Render("No matched selectors recorded for " + hostname)
	}

	width := 0
	for _, h := range hits {
		width = max(width, lipgloss.Width(strconv.Itoa(h.Hits)))
	}

	var b strings.Builder
	b.WriteString(t.Title.Render(hostname))
	b.WriteString(" ")
	b.WriteString(t.CountBadge(len(hits), "selector"))
	b.WriteString("\n")
	for _, h := range hits {
		count := fmt.Sprintf("%*d", width, h.Hits)
		b.WriteString("  ")
		b.WriteString(t.Highlight.Render(count))
		b.WriteString("  ")
		b.WriteString(t.Normal.Render(h.Selector))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderError renders an error line.
func (r *ReportRenderer) RenderError(err error) string {
	return r.theme.ErrorStyle.Render("Error: " + err.Error())
}

func itoa(n int) string { return strconv.Itoa(n) }
