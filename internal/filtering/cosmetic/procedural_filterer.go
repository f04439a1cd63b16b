package cosmetic

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/procedural"
	"github.com/bnema/cosmetic/internal/logging"
)

// ProceduralFilterer tracks compiled procedural selectors and keeps the set
// of nodes they match suppressed as the document changes.
type ProceduralFilterer struct {
	doc    *dom.Document
	sup    *Suppressor
	logger zerolog.Logger

	selectors []*procedural.Selector
	known     map[string]bool
	added     []*procedural.Selector

	domReady     bool
	addedNodes   bool
	removedNodes bool

	current   map[*html.Node]bool
	owned     map[*html.Node]bool
	missCount int
}

// NewProceduralFilterer creates an empty filterer.
func NewProceduralFilterer(ctx context.Context, doc *dom.Document, sup *Suppressor) *ProceduralFilterer {
	return &ProceduralFilterer{
		doc:      doc,
		sup:      sup,
		logger:   logging.FromContext(ctx).With().Str("component", "procedural").Logger(),
		known:    make(map[string]bool),
		current:  make(map[*html.Node]bool),
		owned:    make(map[*html.Node]bool),
		domReady: doc.ReadyState() != dom.StateLoading,
	}
}

// AddSelector compiles raw and tracks it. It reports false for a selector
// that is already known.
func (f *ProceduralFilterer) AddSelector(raw string) (bool, error) {
	if f.known[raw] {
		return false, nil
	}
	sel, err := procedural.Compile(raw)
	if err != nil {
		return false, err
	}
	f.known[raw] = true
	f.selectors = append(f.selectors, sel)
	f.added = append(f.added, sel)
	return true, nil
}

// AddSelectors ingests a batch of pipelines and returns how many were new.
// Malformed entries are rejected one by one.
func (f *ProceduralFilterer) AddSelectors(raws []string) (int, []RejectedRule) {
	var (
		n        int
		rejected []RejectedRule
	)
	for _, raw := range raws {
		added, err := f.AddSelector(raw)
		if err != nil {
			rejected = append(rejected, RejectedRule{Raw: raw, Err: fmt.Errorf("%w: %w", ErrMalformedRule, err)})
			continue
		}
		if added {
			n++
		}
	}
	return n, rejected
}

// Selectors returns the tracked selectors in insertion order.
func (f *ProceduralFilterer) Selectors() []*procedural.Selector {
	return append([]*procedural.Selector(nil), f.selectors...)
}

// MissCount is the number of consecutive full evaluations whose match set
// kept the same size.
func (f *ProceduralFilterer) MissCount() int { return f.missCount }

// Matched returns the current match set in document order of suppression.
func (f *ProceduralFilterer) Matched() []*html.Node {
	var out []*html.Node
	for _, n := range f.sup.Suppressed() {
		if f.current[n] {
			out = append(out, n)
		}
	}
	return out
}

func (f *ProceduralFilterer) domCreated() {
	f.domReady = true
}

func (f *ProceduralFilterer) domChanged(added, removed bool) {
	f.addedNodes = f.addedNodes || added
	f.removedNodes = f.removedNodes || removed
}

// EvaluateAll re-runs every pipeline against the document and reconciles
// the suppressed set with the result.
func (f *ProceduralFilterer) EvaluateAll() {
	f.added = nil
	f.addedNodes = true
	f.commitNow()
}

func (f *ProceduralFilterer) commitNow() {
	if !f.domReady {
		return
	}
	if f.addedNodes || f.removedNodes {
		f.added = nil
	}

	if len(f.added) > 0 {
		for _, sel := range f.added {
			for _, n := range f.exec(sel) {
				f.hide(n)
				f.current[n] = true
			}
		}
		f.logger.Debug().Int("selectors", len(f.added)).Msg("procedural filter set changed")
		f.added = nil
		return
	}

	f.addedNodes, f.removedNodes = false, false
	if len(f.selectors) == 0 {
		return
	}

	after := make(map[*html.Node]bool, len(f.current))
	for _, sel := range f.selectors {
		for _, n := range f.exec(sel) {
			f.hide(n)
			after[n] = true
		}
	}
	if len(after) != len(f.current) {
		f.missCount = 0
	} else {
		f.missCount++
	}
	for n := range f.current {
		if !after[n] {
			f.unhide(n)
		}
	}
	f.current = after
}

// exec runs one selector; a failure is logged and yields no match so the
// other selectors still run.
func (f *ProceduralFilterer) exec(sel *procedural.Selector) (nodes []*html.Node) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Warn().Str("selector", sel.String()).Interface("panic", r).Msg("procedural selector failed")
			nodes = nil
		}
	}()
	return sel.Exec(f.doc)
}

// hide suppresses n and remembers whether this filterer was the one that
// did it, so a later unhide never reveals a node some other rule hid.
func (f *ProceduralFilterer) hide(n *html.Node) {
	if f.sup.IsSuppressed(n) {
		return
	}
	f.sup.Suppress(n)
	if f.sup.IsSuppressed(n) {
		f.owned[n] = true
	}
}

func (f *ProceduralFilterer) unhide(n *html.Node) {
	if !f.owned[n] {
		return
	}
	delete(f.owned, n)
	f.sup.Unsuppress(n)
}
