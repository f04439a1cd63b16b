package styles_test

import (
	"errors"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"

	"github.com/bnema/cosmetic/internal/cli/styles"
)

func testRenderer(t *testing.T) *styles.ReportRenderer {
	t.Helper()
	prev := lipgloss.ColorProfile()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() { lipgloss.SetColorProfile(prev) })
	return styles.NewReportRenderer(styles.NewTheme())
}

func TestRenderApply(t *testing.T) {
	r := testRenderer(t)

	out := r.RenderApply(styles.ApplySummary{
		URL:          "https://news.test/",
		State:        "running",
		Marker:       "a1b2",
		Suppressed:   []string{`div class="ad"`, `img src="/ad.png"`},
		NetSelectors: []string{`img[src="/ad.png"]`},
		Rejected:     []styles.RejectedLine{{Rule: `{"selector":"div"}`, Reason: "unknown operator"}},
		Stopped:      true,
	})

	assert.Contains(t, out, "https://news.test/")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "2 nodes")
	assert.Contains(t, out, `div class="ad"`)
	assert.Contains(t, out, `img[src="/ad.png"]`)
	assert.Contains(t, out, "Rejected 1 rule(s)")
	assert.Contains(t, out, "unknown operator")
	assert.Contains(t, out, "surveyor stopped")
}

func TestRenderApplySingular(t *testing.T) {
	out := testRenderer(t).RenderApply(styles.ApplySummary{URL: "x", State: "disabled", Suppressed: []string{"p"}})
	assert.Contains(t, out, "1 node")
	assert.NotContains(t, out, "1 nodes")
	assert.NotContains(t, out, "Rejected")
}

func TestRenderHits(t *testing.T) {
	r := testRenderer(t)

	assert.Contains(t, r.RenderHits("x.test", nil), "No matched selectors recorded for x.test")

	out := r.RenderHits("x.test", []styles.HitLine{{Selector: ".ad", Hits: 12}, {Selector: "#banner", Hits: 3}})
	assert.Contains(t, out, "2 selectors")
	assert.Contains(t, out, "12  .ad")
	assert.Contains(t, out, " 3  #banner")
}

func TestRenderError(t *testing.T) {
	assert.Equal(t, "Error: boom", testRenderer(t).RenderError(errors.New("boom")))
}
