package backend_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/backend"
	"github.com/bnema/cosmetic/internal/messaging"
)

const rules = `
default:
  ready: true
  declarativeFilters: [".ad"]
  highGenericHideSimple: [".sponsor"]
sites:
  news.test:
    declarativeFilters: [".ad", ".news-ad"]
    proceduralFilters: ['{"selector":"div.card","tasks":[["has-text","SPONSORED"]]}']
    collapseBlocked: true
  www.news.test:
    scripts: "window.x = 1;"
    noDOMSurveying: true
generic:
  "#banner":
    simple: ["#banner"]
  ".promo":
    simple: [".promo"]
    complex: ["div.promo > a"]
  ".promo-box":
    hide: ["section .promo-box"]
blocked:
  - image https://ads.test/banner.png
  - https://ads.test/frame.html
netSelectorCacheCountMax: 3
`

func newStatic(t *testing.T) *backend.Static {
	t.Helper()
	s, err := backend.ParseStatic(context.Background(), []byte(rules))
	require.NoError(t, err)
	return s
}

func TestStaticMergesSiteSections(t *testing.T) {
	s := newStatic(t)

	params, err := s.RetrieveContentScriptParameters(context.Background(), messaging.ContentScriptParametersRequest{
		PageURL: "https://www.news.test/article",
	})
	require.NoError(t, err)

	want := messaging.ContentScriptParameters{
		Ready:                 true,
		DeclarativeFilters:    []string{".ad", ".news-ad"},
		ProceduralFilters:     []string{`{"selector":"div.card","tasks":[["has-text","SPONSORED"]]}`},
		HighGenericHideSimple: []string{".sponsor"},
		Scripts:               "window.x = 1;",
		NoDOMSurveying:        true,
		CollapseBlocked:       true,
	}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	other, err := s.RetrieveContentScriptParameters(context.Background(), messaging.ContentScriptParametersRequest{
		PageURL: "https://elsewhere.test/",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{".ad"}, other.DeclarativeFilters)
	assert.False(t, other.CollapseBlocked)

	// The default section is not shared state.
	again, _ := s.RetrieveContentScriptParameters(context.Background(), messaging.ContentScriptParametersRequest{
		PageURL: "https://elsewhere.test/",
	})
	assert.Equal(t, []string{".ad"}, again.DeclarativeFilters)
}

func TestStaticGenericLookups(t *testing.T) {
	s := newStatic(t)

	resp, err := s.RetrieveGenericSelectors(context.Background(), messaging.GenericSelectorsRequest{
		IDs:     []string{"banner", "nothing"},
		Classes: []string{"promo", "promo-box", "promo"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"#banner", ".promo"}, resp.Simple)
	assert.Equal(t, []string{"div.promo > a"}, resp.Complex)
	assert.Equal(t, []string{"section .promo-box"}, resp.Hide)

	empty, err := s.RetrieveGenericSelectors(context.Background(), messaging.GenericSelectorsRequest{Classes: []string{"clean"}})
	require.NoError(t, err)
	assert.Empty(t, empty.Simple)
}

func TestStaticBlockedRequests(t *testing.T) {
	s := newStatic(t)
	req := messaging.CollapsibleRequest{
		ID: 7,
		Resources: []messaging.Resource{
			{Type: "image", URL: "https://ads.test/banner.png"},
			{Type: "media", URL: "https://ads.test/banner.png"},
			{Type: "sub_frame", URL: "https://ads.test/frame.html"},
			{Type: "image", URL: "https://site.test/logo.png"},
		},
	}

	resp, err := s.GetCollapsibleBlockedRequests(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, uint64(7), resp.ID)
	assert.Equal(t, 3, resp.NetSelectorCacheCountMax)
	assert.Equal(t, []string{"image https://ads.test/banner.png", "sub_frame https://ads.test/frame.html"}, resp.BlockedResources)
	assert.NotEmpty(t, resp.Hash)

	req.Hash = resp.Hash
	again, err := s.GetCollapsibleBlockedRequests(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, resp.Hash, again.Hash)
	assert.Empty(t, again.BlockedResources, "same hash, nothing to resend")
}

func TestStaticRecordsInjectedReports(t *testing.T) {
	s := newStatic(t)
	report := messaging.InjectedReport{Type: "net", Hostname: "x", Selectors: []string{`img[src="/a.png"]`}}
	require.NoError(t, s.CosmeticFiltersInjected(context.Background(), report))
	assert.Equal(t, []messaging.InjectedReport{report}, s.Injected())
}

func TestLoadStatic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"default":{"ready":true,"netHide":["img.x"]}}`), 0o644))

	s, err := backend.LoadStatic(context.Background(), path)
	require.NoError(t, err)
	params, err := s.RetrieveContentScriptParameters(context.Background(), messaging.ContentScriptParametersRequest{PageURL: "http://a.test/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"img.x"}, params.NetHide)

	_, err = backend.LoadStatic(context.Background(), filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = backend.ParseStatic(context.Background(), []byte("generic:\n  banner: {simple: [x]}\n"))
	assert.ErrorIs(t, err, backend.ErrRuleFile)

	_, err = backend.ParseStatic(context.Background(), []byte("default: [not, a, map]"))
	assert.ErrorIs(t, err, backend.ErrRuleFile)
}
