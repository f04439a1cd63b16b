package cosmetic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
)

const hidden = "display: none !important;"

func testContext() context.Context {
	logger := logging.NewFromConfigValues("debug", "pretty")
	return logging.WithContext(context.Background(), logger)
}

func parse(t *testing.T, markup string, opts ...dom.Option) (*dom.Document, *mainloop.Manual) {
	t.Helper()
	sched := mainloop.NewManual()
	doc, err := dom.ParseString(markup, sched, opts...)
	require.NoError(t, err)
	return doc, sched
}

// settle runs enough frames for a notification, a commit and a hide pass to
// go through.
func settle(sched *mainloop.Manual) {
	for i := 0; i < 5; i++ {
		sched.Frame()
	}
}

func one(t *testing.T, doc *dom.Document, sel string) *html.Node {
	t.Helper()
	n, err := doc.QueryOne(nil, sel)
	require.NoError(t, err)
	require.NotNil(t, n, "no node matches %s", sel)
	return n
}

func styleOf(n *html.Node) string {
	v, _ := dom.Attr(n, "style")
	return v
}

type fixture struct {
	doc     *dom.Document
	sched   *mainloop.Manual
	sheet   *cosmetic.UserStylesheet
	sup     *cosmetic.Suppressor
	store   *cosmetic.RuleStore
	watcher *cosmetic.Watcher
}

// newFixture wires a suppressor, a rule store and a watcher the way the
// engine does, without starting the watcher.
func newFixture(t *testing.T, markup string, opts ...dom.Option) *fixture {
	t.Helper()
	ctx := testContext()
	doc, sched := parse(t, markup, opts...)
	sheet := cosmetic.NewUserStylesheet(doc)
	sup := cosmetic.NewSuppressor(ctx, doc, sheet, cosmetic.DefaultOptions())
	store := cosmetic.NewRuleStore(ctx, doc, sup, cosmetic.DefaultOptions())
	watcher := cosmetic.NewWatcher(ctx, doc, cosmetic.DefaultOptions())
	t.Cleanup(func() {
		watcher.Stop()
		store.Close()
		sup.Close()
	})
	return &fixture{doc: doc, sched: sched, sheet: sheet, sup: sup, store: store, watcher: watcher}
}

func (f *fixture) start() {
	f.watcher.AddListener(f.store)
	f.watcher.Start()
	settle(f.sched)
}

type recordedCall struct {
	added   int
	removed bool
}

type recorder struct {
	calls []recordedCall
}

func (r *recorder) DOMChanged(added []*html.Node, removed bool) {
	r.calls = append(r.calls, recordedCall{added: len(added), removed: removed})
}

func htmlAttr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}
