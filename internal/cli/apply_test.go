package cli_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/backend"
	"github.com/bnema/cosmetic/internal/cli"
	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
)

const page = `<html><head></head><body>
<div class="ad">ad</div>
<div id="banner">banner</div>
<div class="card">SPONSORED</div>
<img src="/ad.png">
<p>text</p>
</body></html>`

const pageRules = `
default:
  ready: true
  declarativeFilters: [".ad"]
  proceduralFilters:
    - '{"selector":"div.card","tasks":[["has-text","SPONSORED"]]}'
    - '{"selector":"div","tasks":[["no-such-op","x"]]}'
generic:
  "#banner": {simple: ["#banner"]}
  ".late": {simple: [".late"]}
blocked: ["image http://x.test/ad.png"]
`

func staticBackend(t *testing.T) *backend.Static {
	t.Helper()
	b, err := backend.ParseStatic(context.Background(), []byte(pageRules))
	require.NoError(t, err)
	return b
}

func TestApplyHidesEverySource(t *testing.T) {
	b := staticBackend(t)
	res, err := cli.Apply(context.Background(), b, nil, cli.ApplyInput{
		Markup:  page,
		URL:     "http://x.test/index.html",
		Options: cosmetic.DefaultOptions(),
	})
	require.NoError(t, err)

	assert.Equal(t, cosmetic.StateRunning, res.Report.State)
	var described []string
	for _, n := range res.Report.Suppressed {
		described = append(described, dom.Describe(n))
	}
	assert.Len(t, res.Report.Suppressed, 4, "declarative, generic, procedural and collapsed: %v", described)
	assert.Equal(t, []string{`img[src="/ad.png"]`}, res.Report.NetSelectors)
	require.Len(t, res.Report.Rejected, 1)

	summary := res.Summary()
	assert.Equal(t, "running", summary.State)
	assert.Len(t, summary.Suppressed, 4)
	require.Len(t, summary.Rejected, 1)
	assert.Contains(t, summary.Rejected[0].Rule, "no-such-op")

	require.Len(t, b.Injected(), 1)
	assert.Equal(t, "x.test", b.Injected()[0].Hostname)

	var out bytes.Buffer
	require.NoError(t, res.WriteHTML(&out))
	assert.Contains(t, out.String(), "display: none !important")
	assert.Contains(t, out.String(), `hidden=""`)
}

func TestApplyFollowsMutations(t *testing.T) {
	res, err := cli.Apply(context.Background(), staticBackend(t), nil, cli.ApplyInput{
		Markup:   page,
		URL:      "http://x.test/",
		Options:  cosmetic.DefaultOptions(),
		Duration: 500 * time.Millisecond,
		Mutate: func(doc *dom.Document) error {
			_, err := doc.AppendHTML(doc.Body(), `<section><span class="late">new</span></section>`)
			return err
		},
	})
	require.NoError(t, err)

	late, err := res.Doc.QueryOne(nil, ".late")
	require.NoError(t, err)
	require.NotNil(t, late)
	style, _ := dom.Attr(late, "style")
	assert.Contains(t, style, "display: none !important")
}

func TestApplyDisabledPage(t *testing.T) {
	b, err := backend.ParseStatic(context.Background(), []byte("default: {ready: false}"))
	require.NoError(t, err)

	res, err := cli.Apply(context.Background(), b, nil, cli.ApplyInput{Markup: page, URL: "http://x.test/"})
	require.NoError(t, err)
	assert.Equal(t, cosmetic.StateDisabled, res.Report.State)
	assert.Empty(t, res.Report.Suppressed)
}

func TestApplyHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cli.Apply(ctx, staticBackend(t), nil, cli.ApplyInput{Markup: page, URL: "http://x.test/"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyRealTime(t *testing.T) {
	b := staticBackend(t)
	res, err := cli.Apply(context.Background(), b, nil, cli.ApplyInput{
		Markup:   page,
		URL:      "http://x.test/index.html",
		Options:  cosmetic.DefaultOptions(),
		Duration: 750 * time.Millisecond,
		Step:     5 * time.Millisecond,
		RealTime: true,
		Mutate: func(doc *dom.Document) error {
			_, err := doc.AppendHTML(doc.Body(), `<section><span class="late">new</span></section>`)
			return err
		},
	})
	require.NoError(t, err)

	assert.Equal(t, cosmetic.StateRunning, res.Report.State)
	assert.Len(t, res.Report.Suppressed, 5, "the four page sources plus the late node")
	assert.Equal(t, []string{`img[src="/ad.png"]`}, res.Report.NetSelectors)
	require.Len(t, b.Injected(), 1, "background calls finish before Apply returns")
}

func TestApplyRealTimeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cli.Apply(ctx, staticBackend(t), nil, cli.ApplyInput{Markup: page, URL: "http://x.test/", RealTime: true})
	assert.ErrorIs(t, err, context.Canceled)
}
