package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/dom"
)

func TestQueryAllReturnsDocumentOrder(t *testing.T) {
	doc, _ := parse(t, `<div class="ad" id="1"></div><p><span class="ad" id="2"></span></p><div class="ad" id="3"></div>`)

	nodes, err := doc.QueryAll(nil, ".ad")
	require.NoError(t, err)
	var ids []string
	for _, n := range nodes {
		id, _ := dom.Attr(n, "id")
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}

func TestQueryAllScopeExcludesScopeItself(t *testing.T) {
	doc, _ := parse(t, `<div class="x" id="outer"><div class="x" id="inner"></div></div>`)
	outer, _ := doc.QueryOne(nil, "#outer")

	nodes, err := doc.QueryAll(outer, ".x")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	id, _ := dom.Attr(nodes[0], "id")
	assert.Equal(t, "inner", id)
}

func TestInvalidSelectorIsReportedAndCached(t *testing.T) {
	doc, _ := parse(t, `<p></p>`)

	err := doc.ValidateSelector("div[")
	assert.ErrorIs(t, err, dom.ErrInvalidSelector)
	_, err = doc.QueryAll(nil, "div[")
	assert.ErrorIs(t, err, dom.ErrInvalidSelector)

	assert.ErrorIs(t, doc.ValidateSelector("   "), dom.ErrInvalidSelector)
	assert.NoError(t, doc.ValidateSelector("div > p, .ad ~ span"))
}

func TestMatches(t *testing.T) {
	doc, _ := parse(t, `<div class="banner"><p id="t">x</p></div>`)
	p, _ := doc.QueryOne(nil, "#t")

	ok, err := doc.Matches(p, ".banner > p")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = doc.Matches(p, "span")
	require.NoError(t, err)
	assert.False(t, ok)
}
