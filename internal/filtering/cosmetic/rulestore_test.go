package cosmetic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
	"github.com/bnema/cosmetic/internal/filtering/procedural"
)

const page = `<html><head></head><body><div id="root"></div></body></html>`

func TestGenericRuleAppliesToLaterNodes(t *testing.T) {
	f := newFixture(t, page)
	require.True(t, f.store.AddDeclarativeRule([]string{".ad-banner"}, hidden, cosmetic.RuleOptions{Lazy: true}))
	f.store.Commit(false)
	f.start()

	nodes, err := f.doc.AppendHTML(one(t, f.doc, "#root"), `<div class="ad-banner">buy</div><div class="news">read</div>`)
	require.NoError(t, err)
	settle(f.sched)

	assert.True(t, f.sup.IsSuppressed(nodes[0]))
	assert.Equal(t, hidden, styleOf(nodes[0]))
	assert.False(t, f.sup.IsSuppressed(nodes[1]))
	assert.True(t, f.doc.Contains(nodes[0]), "suppression never removes nodes")
}

func TestSpecificRulesMatchDescendantsAndComplexSelectors(t *testing.T) {
	f := newFixture(t, page)
	f.start()
	f.store.AddDeclarativeRule([]string{".promo", "#root > section .sponsor"}, hidden, cosmetic.RuleOptions{})
	f.store.Commit(true)

	nodes, err := f.doc.AppendHTML(one(t, f.doc, "#root"),
		`<section><p class="promo">a</p><p><span class="sponsor">b</span></p></section>`)
	require.NoError(t, err)
	settle(f.sched)

	assert.True(t, f.sup.IsSuppressed(one(t, f.doc, ".promo")))
	assert.True(t, f.sup.IsSuppressed(one(t, f.doc, ".sponsor")))
	assert.False(t, f.sup.IsSuppressed(nodes[0]))

	p, ok := f.store.PartitionOf("#root > section .sponsor")
	require.True(t, ok)
	assert.Equal(t, cosmetic.SpecificComplex, p)
}

func TestRemovalReleasesVanishedComplexMatches(t *testing.T) {
	f := newFixture(t, `<div id="root"><p class="lead">a</p><p class="promo" id="sib">b</p><p class="promo keep" id="kept">c</p></div>`)
	f.store.AddDeclarativeRule([]string{".lead + .promo", ".keep"}, hidden, cosmetic.RuleOptions{})
	f.start()

	sib, kept := one(t, f.doc, "#sib"), one(t, f.doc, "#kept")
	require.True(t, f.sup.IsSuppressed(sib))
	require.True(t, f.sup.IsSuppressed(kept))

	f.doc.Remove(one(t, f.doc, ".lead"))
	settle(f.sched)

	assert.False(t, f.sup.IsSuppressed(sib), "the sibling combinator no longer matches")
	assert.False(t, dom.HasAttr(sib, "style"))
	assert.True(t, f.sup.IsSuppressed(kept))
}

func TestNewSelectorsApplyToExistingNodes(t *testing.T) {
	f := newFixture(t, `<div class="x">1</div><div class="y">2</div>`)
	f.start()

	f.store.AddDeclarativeRule([]string{".y"}, hidden, cosmetic.RuleOptions{Type: cosmetic.TypeSimple})
	f.store.Commit(false)
	settle(f.sched)

	assert.True(t, f.sup.IsSuppressed(one(t, f.doc, ".y")))
	assert.False(t, f.sup.IsSuppressed(one(t, f.doc, ".x")))
}

func TestPartitionInvariant(t *testing.T) {
	f := newFixture(t, page)
	inserts := []struct {
		selectors []string
		opts      cosmetic.RuleOptions
	}{
		{[]string{".a", "div > .b"}, cosmetic.RuleOptions{}},
		{[]string{".a", ".c"}, cosmetic.RuleOptions{Lazy: true}},
		{[]string{"div > .b", ".d"}, cosmetic.RuleOptions{Lazy: true, Type: cosmetic.TypeComplex}},
		{[]string{".e,\n.f ~ .g"}, cosmetic.RuleOptions{Type: cosmetic.TypeAuto}},
		{[]string{".c"}, cosmetic.RuleOptions{Type: cosmetic.TypeComplex}},
	}
	for _, in := range inserts {
		f.store.AddDeclarativeRule(in.selectors, hidden, in.opts)
	}

	all := f.store.AllDeclarativeSelectors()
	assert.ElementsMatch(t, []string{".a", "div > .b", ".c", ".d", ".e", ".f ~ .g"}, all)
	for _, sel := range all {
		count := 0
		for _, p := range []cosmetic.Partition{cosmetic.GenericSimple, cosmetic.GenericComplex, cosmetic.SpecificSimple, cosmetic.SpecificComplex} {
			for _, member := range f.store.Selectors(p) {
				if member == sel {
					count++
				}
			}
		}
		assert.Equal(t, 1, count, "selector %q", sel)
	}

	assert.Equal(t, ".a,\n.e", f.store.Aggregated(cosmetic.SpecificSimple))
	assert.Equal(t, ".d", f.store.Aggregated(cosmetic.GenericComplex))
	assert.False(t, f.store.AddDeclarativeRule([]string{".a"}, hidden, cosmetic.RuleOptions{}), "duplicates create no work")
}

func TestDeclarativeRuleDropsInvalidSelectors(t *testing.T) {
	f := newFixture(t, page)

	assert.True(t, f.store.AddDeclarativeRule([]string{"div[", ".ok"}, hidden, cosmetic.RuleOptions{}))
	assert.Equal(t, []string{".ok"}, f.store.AllDeclarativeSelectors())
	assert.False(t, f.store.AddDeclarativeRule([]string{"::"}, hidden, cosmetic.RuleOptions{}))
}

func TestNonHideDeclarationsGoToStylesheet(t *testing.T) {
	f := newFixture(t, page)

	assert.True(t, f.store.AddDeclarativeRule([]string{".x"}, "color: red;", cosmetic.RuleOptions{}))
	assert.Contains(t, f.sheet.Rules(), ".x\n{ color: red; }")
	_, ok := f.store.PartitionOf(".x")
	assert.False(t, ok)
}

func TestProceduralRuleEncodings(t *testing.T) {
	f := newFixture(t, `<div id="styled"></div><div id="pseudo"></div><div class="card">SPONSORED</div>`)

	rejected := f.store.AddProceduralRules([]string{
		`{"style":["#styled","color: blue;"]}`,
		`{"pseudoclass":true,"raw":"#pseudo"}`,
		`{"selector":"div.card","tasks":[["has-text","SPONSORED"]]}`,
		`not json`,
		`{"selector":"div","tasks":[["bogus","x"]]}`,
		`{"something":"else"}`,
	})

	require.Len(t, rejected, 3)
	for _, r := range rejected {
		assert.ErrorIs(t, r.Err, cosmetic.ErrMalformedRule)
	}
	assert.ErrorIs(t, rejected[1].Err, procedural.ErrUnknownOperator)

	assert.Contains(t, f.sheet.Rules(), "#styled\n{ color: blue; }")
	p, ok := f.store.PartitionOf("#pseudo")
	require.True(t, ok)
	assert.Equal(t, cosmetic.SpecificSimple, p)
	require.Len(t, f.store.AllProceduralSelectors(), 1)

	f.start()
	assert.True(t, f.sup.IsSuppressed(one(t, f.doc, "#pseudo")))
	assert.True(t, f.sup.IsSuppressed(one(t, f.doc, ".card")))
	assert.False(t, f.sup.IsSuppressed(one(t, f.doc, "#styled")))
}

func TestProceduralSelectorMatchesOnlyTextHit(t *testing.T) {
	f := newFixture(t, `<div class="card" id="a">SPONSORED post</div><div class="card" id="b">regular post</div>`)
	f.store.AddProceduralRules([]string{`{"selector":"div.card","tasks":[["has-text","SPONSORED"]]}`})
	f.start()

	assert.True(t, f.sup.IsSuppressed(one(t, f.doc, "#a")))
	assert.False(t, f.sup.IsSuppressed(one(t, f.doc, "#b")))
	assert.Len(t, f.store.Procedural().Matched(), 1)
}

func TestProceduralEvaluationUnsuppressesVanishedMatches(t *testing.T) {
	f := newFixture(t, `<div class="card" id="a">PROMO</div>`)
	f.store.AddProceduralRules([]string{`{"selector":"div.card","tasks":[["has-text","PROMO"]]}`})
	f.start()
	a := one(t, f.doc, "#a")
	require.True(t, f.sup.IsSuppressed(a))

	f.doc.RemoveChild(a, a.FirstChild)
	require.NoError(t, f.doc.AppendChild(a, f.doc.CreateTextNode("plain")))
	settle(f.sched)

	assert.False(t, f.sup.IsSuppressed(a))
	assert.False(t, dom.HasAttr(a, "style"))
	assert.Equal(t, 0, f.store.Procedural().MissCount(), "match set size changed")

	_, err := f.doc.AppendHTML(f.doc.Body(), `<p>unrelated</p>`)
	require.NoError(t, err)
	settle(f.sched)
	assert.Equal(t, 1, f.store.Procedural().MissCount())
}

func TestProceduralUnhideKeepsDeclarativeSuppression(t *testing.T) {
	f := newFixture(t, `<div class="card ad" id="a">PROMO</div>`)
	f.store.AddDeclarativeRule([]string{".ad"}, hidden, cosmetic.RuleOptions{})
	f.store.AddProceduralRules([]string{`{"selector":"div.card","tasks":[["has-text","PROMO"]]}`})
	f.start()
	a := one(t, f.doc, "#a")
	require.True(t, f.sup.IsSuppressed(a))

	f.doc.RemoveChild(a, a.FirstChild)
	settle(f.sched)
	assert.True(t, f.sup.IsSuppressed(a))
}

func TestRuleStoreToggleAndFilteredCount(t *testing.T) {
	f := newFixture(t, `<p class="ad">1</p><p class="ad">2</p><p class="ok">3</p>`)
	f.store.AddDeclarativeRule([]string{".ad"}, hidden, cosmetic.RuleOptions{})
	f.start()
	assert.Equal(t, 2, f.store.FilteredElementCount())

	f.store.Toggle(false)
	settle(f.sched)
	for _, sel := range []string{".ad"} {
		nodes, err := f.doc.QueryAll(nil, sel)
		require.NoError(t, err)
		for _, n := range nodes {
			assert.False(t, dom.HasAttr(n, "style"))
		}
	}

	f.store.Toggle(true)
	settle(f.sched)
	nodes, err := f.doc.QueryAll(nil, ".ad")
	require.NoError(t, err)
	for _, n := range nodes {
		assert.Equal(t, hidden, styleOf(n))
	}
}
