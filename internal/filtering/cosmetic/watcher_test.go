package cosmetic_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
)

func TestWatcherCoalescesMutationsPerFrame(t *testing.T) {
	doc, sched := parse(t, `<html><body><div id="root"></div></body></html>`)
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	rec := &recorder{}
	w.AddListener(rec)
	w.Start()
	require.Equal(t, []recordedCall{{}}, rec.calls, "initial notification")

	root := one(t, doc, "#root")
	for i := 0; i < 5; i++ {
		_, err := doc.AppendHTML(root, `<span>x</span>`)
		require.NoError(t, err)
	}
	doc.Remove(root.FirstChild)
	sched.Frame()

	require.Len(t, rec.calls, 2)
	assert.Equal(t, recordedCall{added: 4, removed: true}, rec.calls[1])

	sched.Frame()
	assert.Len(t, rec.calls, 2, "nothing left to deliver")
}

func TestWatcherFallsBackToTimeout(t *testing.T) {
	doc, sched := parse(t, `<html><body></body></html>`)
	opts := cosmetic.DefaultOptions()
	opts.FrameTimeout = time.Second
	w := cosmetic.NewWatcher(testContext(), doc, opts)
	rec := &recorder{}
	w.AddListener(rec)
	w.Start()

	_, err := doc.AppendHTML(doc.Body(), `<div></div>`)
	require.NoError(t, err)

	// No frame ever runs, as in a background tab.
	sched.Advance(999 * time.Millisecond)
	assert.Len(t, rec.calls, 1)
	sched.Advance(time.Millisecond)
	require.Len(t, rec.calls, 2)
	assert.Equal(t, 1, rec.calls[1].added)
}

func TestWatcherFiltersNoise(t *testing.T) {
	doc, sched := parse(t, `<html><head></head><body></body></html>`)
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	rec := &recorder{}
	w.AddListener(rec)
	w.Start()

	_, err := doc.AppendHTML(doc.Body(), `<script>var a;</script><style>p{}</style><br>`)
	require.NoError(t, err)
	require.NoError(t, doc.AppendChild(doc.Body(), doc.CreateTextNode("text")))
	sched.Frame()

	assert.Len(t, rec.calls, 1, "only the initial notification")
}

func TestWatcherLateListenerGetsInitialNotification(t *testing.T) {
	doc, sched := parse(t, `<html><body></body></html>`)
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	early := &recorder{}
	w.AddListener(early)
	w.Start()

	late := &recorder{}
	w.AddListener(late)
	w.AddListener(late)
	assert.Equal(t, []recordedCall{{}}, late.calls)
	assert.Equal(t, 2, w.Listeners())

	_, err := doc.AppendHTML(doc.Body(), `<div></div>`)
	require.NoError(t, err)
	sched.Frame()
	assert.Len(t, early.calls, 2)
	assert.Len(t, late.calls, 2)
}

func TestWatcherWaitsForContentLoaded(t *testing.T) {
	doc, sched := parse(t, `<html><body></body></html>`, dom.WithReadyState(dom.StateLoading))
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	rec := &recorder{}
	w.AddListener(rec)
	w.Start()
	assert.False(t, w.Ready())
	assert.Empty(t, rec.calls)

	doc.SetReadyState(dom.StateInteractive)
	sched.Flush()
	assert.True(t, w.Ready())
	assert.Equal(t, []recordedCall{{}}, rec.calls)
	assert.True(t, w.Observing())
}

func TestWatcherRemovingLastListenerStopsObserving(t *testing.T) {
	doc, sched := parse(t, `<html><body></body></html>`)
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	rec := &recorder{}
	w.AddListener(rec)
	w.Start()
	require.True(t, w.Observing())

	w.RemoveListener(rec)
	assert.False(t, w.Observing())

	_, err := doc.AppendHTML(doc.Body(), `<div></div>`)
	require.NoError(t, err)
	sched.Frame()
	assert.Len(t, rec.calls, 1)
}

func TestWatcherWithoutObserverIsInert(t *testing.T) {
	doc, sched := parse(t, `<html><body></body></html>`, dom.WithoutMutationObserver())
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	rec := &recorder{}
	w.AddListener(rec)
	w.Start()

	_, err := doc.AppendHTML(doc.Body(), `<div></div>`)
	require.NoError(t, err)
	settle(sched)

	assert.False(t, w.Available())
	assert.False(t, w.Observing())
	assert.Empty(t, rec.calls)
}

func TestWatcherStaysStoppedAfterStop(t *testing.T) {
	doc, sched := parse(t, `<html><body><div id="root"></div></body></html>`)
	w := cosmetic.NewWatcher(testContext(), doc, cosmetic.DefaultOptions())
	first := &recorder{}
	w.AddListener(first)
	w.Start()
	w.Stop()

	late := &recorder{}
	w.AddListener(late)
	w.Start()
	_, err := doc.AppendHTML(one(t, doc, "#root"), `<p>x</p>`)
	require.NoError(t, err)
	sched.Frame()

	assert.True(t, w.Stopped())
	assert.False(t, w.Observing())
	assert.Empty(t, late.calls)
	assert.Len(t, first.calls, 1, "only the initial notification")
	assert.Zero(t, sched.PendingFrames())
}
