package dom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/dom"
)

func TestObserverBatchesRecordsIntoOneMicrotask(t *testing.T) {
	doc, sched := parse(t, `<body><div id="root"></div></body>`)
	root, _ := doc.QueryOne(nil, "#root")

	var batches [][]dom.MutationRecord
	obs, err := doc.NewMutationObserver(func(records []dom.MutationRecord) {
		batches = append(batches, records)
	})
	require.NoError(t, err)
	obs.Observe(doc.DocumentElement(), dom.ObserveOptions{ChildList: true, Subtree: true})

	require.NoError(t, doc.AppendChild(root, doc.CreateElement("p")))
	require.NoError(t, doc.AppendChild(root, doc.CreateElement("span")))
	assert.Empty(t, batches, "records are delivered asynchronously")

	sched.Flush()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, dom.MutationChildList, batches[0][0].Type)
	assert.Equal(t, "p", batches[0][0].AddedNodes[0].Data)
	assert.Equal(t, "span", batches[0][1].AddedNodes[0].Data)
}

func TestObserverWithoutSubtreeIgnoresDescendants(t *testing.T) {
	doc, sched := parse(t, `<div id="a"><div id="b"></div></div>`)
	a, _ := doc.QueryOne(nil, "#a")
	b, _ := doc.QueryOne(nil, "#b")

	calls := 0
	obs, err := doc.NewMutationObserver(func([]dom.MutationRecord) { calls++ })
	require.NoError(t, err)
	obs.Observe(a, dom.ObserveOptions{ChildList: true})

	require.NoError(t, doc.AppendChild(b, doc.CreateElement("i")))
	sched.Flush()
	assert.Equal(t, 0, calls)

	require.NoError(t, doc.AppendChild(a, doc.CreateElement("i")))
	sched.Flush()
	assert.Equal(t, 1, calls)
}

func TestAttributeFilterAndOldValue(t *testing.T) {
	doc, sched := parse(t, `<p id="x" style="color: red"></p>`)
	p, _ := doc.QueryOne(nil, "#x")

	var got []dom.MutationRecord
	obs, err := doc.NewMutationObserver(func(records []dom.MutationRecord) { got = append(got, records...) })
	require.NoError(t, err)
	obs.Observe(p, dom.ObserveOptions{AttributeFilter: []string{"style"}})

	doc.SetAttribute(p, "class", "ignored")
	doc.SetAttribute(p, "style", "display: none")
	sched.Flush()

	require.Len(t, got, 1)
	assert.Equal(t, "style", got[0].AttributeName)
	assert.Equal(t, "color: red", got[0].OldValue)
	assert.True(t, got[0].HadOldValue)
}

func TestDisconnectDropsQueuedRecords(t *testing.T) {
	doc, sched := parse(t, `<div id="a"></div>`)
	a, _ := doc.QueryOne(nil, "#a")

	calls := 0
	obs, err := doc.NewMutationObserver(func([]dom.MutationRecord) { calls++ })
	require.NoError(t, err)
	obs.Observe(a, dom.ObserveOptions{ChildList: true})
	require.NoError(t, doc.AppendChild(a, doc.CreateElement("i")))
	obs.Disconnect()
	sched.Flush()

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, obs.Observing())
}

func TestObserverUnavailable(t *testing.T) {
	doc, _ := parse(t, `<p></p>`, dom.WithoutMutationObserver())
	_, err := doc.NewMutationObserver(func([]dom.MutationRecord) {})
	assert.ErrorIs(t, err, dom.ErrObserverUnavailable)
}
