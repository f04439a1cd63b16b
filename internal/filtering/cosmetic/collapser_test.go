package cosmetic_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
	"github.com/bnema/cosmetic/internal/messaging"
	"github.com/bnema/cosmetic/internal/messaging/mocks"
)

const mediaPage = `<html><head></head><body>
<img id="ad" src="/ad.png">
<img id="ok" src="http://x/ok.png">
</body></html>`

func newCollapser(t *testing.T, f *fixture, backend messaging.Backend, opts cosmetic.Options) *cosmetic.Collapser {
	t.Helper()
	client := messaging.NewClient(testContext(), backend, f.sched, messaging.WithInline())
	c := cosmetic.NewCollapser(testContext(), f.doc, client, f.sup, opts)
	t.Cleanup(c.Shutdown)
	f.watcher.AddListener(c)
	return c
}

func TestCollapserHidesBlockedResources(t *testing.T) {
	f := newFixture(t, mediaPage, dom.WithURL("http://x/page.html"))
	backend := mocks.NewMockBackend(t)
	backend.EXPECT().
		GetCollapsibleBlockedRequests(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
			assert.Equal(t, []messaging.Resource{
				{Type: "image", URL: "http://x/ad.png"},
				{Type: "image", URL: "http://x/ok.png"},
			}, req.Resources)
			return &messaging.CollapsibleResponse{
				ID:                       req.ID,
				BlockedResources:         []string{"image http://x/ad.png"},
				Hash:                     "h1",
				NetSelectorCacheCountMax: 10,
			}, nil
		}).Once()
	backend.EXPECT().
		CosmeticFiltersInjected(mock.Anything, messaging.InjectedReport{
			Type:      "net",
			Hostname:  "x",
			Selectors: []string{`img[src="/ad.png"]`},
		}).
		Return(nil).Once()

	c := newCollapser(t, f, backend, cosmetic.DefaultOptions())
	f.start()

	ad, ok := one(t, f.doc, "#ad"), one(t, f.doc, "#ok")
	assert.True(t, f.sup.IsSuppressed(ad))
	assert.Contains(t, styleOf(ad), hidden)
	assert.True(t, dom.HasAttr(ad, "hidden"))
	assert.True(t, f.doc.Contains(ad))
	assert.False(t, f.sup.IsSuppressed(ok))
	assert.Equal(t, []string{`img[src="/ad.png"]`}, c.Selectors())
	assert.Equal(t, 0, c.Pending())
}

func TestCollapserKeepsPageInlineStyle(t *testing.T) {
	f := newFixture(t, `<html><head></head><body>
<img id="ad" src="/ad.png" style="width: 300px">
</body></html>`, dom.WithURL("http://x/page.html"))
	backend := mocks.NewMockBackend(t)
	backend.EXPECT().
		GetCollapsibleBlockedRequests(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
			return &messaging.CollapsibleResponse{
				ID:               req.ID,
				BlockedResources: []string{"image http://x/ad.png"},
				Hash:             "h1",
			}, nil
		}).Once()
	backend.EXPECT().
		CosmeticFiltersInjected(mock.Anything, mock.Anything).
		Return(nil).Once()

	newCollapser(t, f, backend, cosmetic.DefaultOptions())
	f.start()

	ad := one(t, f.doc, "#ad")
	require.True(t, f.sup.IsSuppressed(ad))
	assert.Contains(t, styleOf(ad), "width: 300px;")
	assert.NotContains(t, styleOf(ad), "width: ;")
	assert.Contains(t, styleOf(ad), hidden)
}

func TestCollapserDebouncesAndIgnoresSupersededIDs(t *testing.T) {
	f := newFixture(t, `<html><body></body></html>`, dom.WithURL("https://site.test/"))
	backend := mocks.NewMockBackend(t)
	var requests []messaging.CollapsibleRequest
	backend.EXPECT().
		GetCollapsibleBlockedRequests(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
			requests = append(requests, req)
			return &messaging.CollapsibleResponse{
				ID:               req.ID + 100,
				BlockedResources: []string{"sub_frame https://ads.test/frame"},
				Hash:             "h",
			}, nil
		})

	c := newCollapser(t, f, backend, cosmetic.DefaultOptions())
	f.start()
	require.Empty(t, requests, "nothing to send on an empty page")

	_, err := f.doc.AppendHTML(f.doc.Body(), `<iframe src="https://ads.test/frame"></iframe><iframe src="about:blank"></iframe>`)
	require.NoError(t, err)
	_, err = f.doc.AppendHTML(f.doc.Body(), `<div><embed src="/plugin.swf"></div>`)
	require.NoError(t, err)
	f.sched.Frame()
	assert.Empty(t, requests, "held for the debounce window")

	f.sched.Advance(cosmetic.DefaultCollapseDebounce)
	require.Len(t, requests, 1)
	assert.Equal(t, []messaging.Resource{
		{Type: "sub_frame", URL: "https://ads.test/frame"},
		{Type: "object", URL: "https://site.test/plugin.swf"},
	}, requests[0].Resources)

	settle(f.sched)
	assert.Equal(t, 1, c.Pending(), "response for an unknown id is ignored")
	assert.Equal(t, 0, f.sup.Count())
}

func TestCollapserDropsStateWhenBackendIsGone(t *testing.T) {
	f := newFixture(t, mediaPage, dom.WithURL("http://x/"))
	backend := mocks.NewMockBackend(t)
	backend.EXPECT().
		GetCollapsibleBlockedRequests(mock.Anything, mock.Anything).
		Return(nil, nil)

	c := newCollapser(t, f, backend, cosmetic.DefaultOptions())
	f.start()

	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 0, f.sup.Count())
}

func TestCollapserWatchesIFrameSource(t *testing.T) {
	f := newFixture(t, `<html><body><iframe id="f" src="https://clean.test/"></iframe></body></html>`)
	backend := mocks.NewMockBackend(t)
	backend.EXPECT().
		GetCollapsibleBlockedRequests(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
			return &messaging.CollapsibleResponse{
				ID:                       req.ID,
				BlockedResources:         []string{"sub_frame https://ads.test/"},
				Hash:                     "h1",
				NetSelectorCacheCountMax: 0,
			}, nil
		})
	backend.EXPECT().CosmeticFiltersInjected(mock.Anything, mock.Anything).Return(nil).Maybe()

	opts := cosmetic.DefaultOptions()
	opts.CollapseDebounce = 0
	c := newCollapser(t, f, backend, opts)
	f.start()
	frame := one(t, f.doc, "#f")
	require.False(t, f.sup.IsSuppressed(frame))

	f.doc.SetAttribute(frame, "src", "https://ads.test/")
	settle(f.sched)

	assert.True(t, f.sup.IsSuppressed(frame))
	assert.Len(t, c.Selectors(), 1, "the first synthesized selector fits a zero cap")
}

func TestCollapserHandlesResourceErrors(t *testing.T) {
	f := newFixture(t, `<html><body></body></html>`, dom.WithURL("http://x/"))
	backend := mocks.NewMockBackend(t)
	var sent [][]messaging.Resource
	backend.EXPECT().
		GetCollapsibleBlockedRequests(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, req messaging.CollapsibleRequest) (*messaging.CollapsibleResponse, error) {
			sent = append(sent, req.Resources)
			return &messaging.CollapsibleResponse{ID: req.ID, Hash: "empty"}, nil
		})

	newCollapser(t, f, backend, cosmetic.DefaultOptions())
	f.start()

	// Appended with no watcher notification of its own: only the error event
	// reports it.
	obj := f.doc.CreateElement("object")
	obj.Attr = append(obj.Attr, htmlAttr("data", "/movie.mp4"))
	f.watcher.Stop()
	require.NoError(t, f.doc.AppendChild(f.doc.Body(), obj))
	f.doc.DispatchResourceError(obj)
	f.sched.Flush()
	f.sched.Advance(50 * time.Millisecond)

	require.Len(t, sent, 1)
	assert.Equal(t, []messaging.Resource{{Type: "object", URL: "http://x/movie.mp4"}}, sent[0])
}
