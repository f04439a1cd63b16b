package cosmetic

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
)

const hideBatchKey = "hide-batch"

// suppression is the per-node record. hadStyle false means the node had no
// style attribute when it was first suppressed.
type suppression struct {
	seq      uint64
	style    string
	hadStyle bool
}

// Suppressor is the only component that hides or reveals nodes. Nodes are
// marked with a per-page attribute, and the inline hide style is written in
// batched passes that read everything before writing anything.
type Suppressor struct {
	doc    *dom.Document
	sheet  *UserStylesheet
	logger zerolog.Logger

	marker      string
	ruleApplied bool

	records map[*html.Node]*suppression
	seq     uint64

	staged    []*html.Node
	stagedSet map[*html.Node]bool
	batch     *mainloop.Coalescer

	observer *dom.MutationObserver
	closed   bool
}

// NewSuppressor creates a suppressor writing its marker rule to sheet.
func NewSuppressor(ctx context.Context, doc *dom.Document, sheet *UserStylesheet, opts Options) *Suppressor {
	opts = opts.withDefaults()
	s := &Suppressor{
		doc:       doc,
		sheet:     sheet,
		logger:    logging.FromContext(ctx).With().Str("component", "suppressor").Logger(),
		marker:    newMarker(),
		records:   make(map[*html.Node]*suppression),
		stagedSet: make(map[*html.Node]bool),
		batch:     mainloop.NewCoalescer(doc.Scheduler(), opts.FrameTimeout),
	}
	obs, err := doc.NewMutationObserver(s.onStyleMutations)
	if err != nil {
		s.logger.Debug().Err(err).Msg("style attribute watch unavailable")
	} else {
		s.observer = obs
	}
	return s
}

// newMarker returns a random attribute name. It starts with a letter so it is
// a valid attribute selector.
func newMarker() string {
	return "c" + strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
}

// Marker returns the attribute set on suppressed nodes.
func (s *Suppressor) Marker() string { return s.marker }

// Rule returns the stylesheet rule that hides marked nodes.
func (s *Suppressor) Rule() string {
	return "[" + s.marker + "]" + hideBlock
}

// Suppress hides n. Repeated calls have no further effect. Detached nodes are
// ignored.
func (s *Suppressor) Suppress(n *html.Node) {
	if s.closed || n == nil || n.Type != html.ElementNode || !s.doc.Contains(n) {
		return
	}
	if _, ok := s.records[n]; ok {
		return
	}
	if !s.ruleApplied {
		s.ruleApplied = true
		s.sheet.Add(s.Rule())
	}
	s.seq++
	rec := &suppression{seq: s.seq}
	rec.style, rec.hadStyle = dom.Attr(n, "style")
	s.records[n] = rec
	s.doc.SetAttribute(n, s.marker, "")
	s.stage(n)
	if s.observer != nil {
		s.observer.Observe(n, dom.ObserveOptions{AttributeFilter: []string{"style"}})
	}
}

// Unsuppress reverts Suppress, restoring the style attribute exactly as it
// was, or removing it when there was none.
func (s *Suppressor) Unsuppress(n *html.Node) {
	rec, ok := s.records[n]
	if !ok {
		return
	}
	if s.observer != nil {
		s.observer.Unobserve(n)
	}
	s.doc.RemoveAttribute(n, s.marker)
	s.unstage(n)
	s.restore(n, rec)
	delete(s.records, n)
}

// IsSuppressed reports whether n is currently suppressed.
func (s *Suppressor) IsSuppressed(n *html.Node) bool {
	_, ok := s.records[n]
	return ok
}

// Suppressed lists suppressed nodes still in the document, in suppression
// order.
func (s *Suppressor) Suppressed() []*html.Node {
	out := make([]*html.Node, 0, len(s.records))
	for n := range s.records {
		if s.doc.Contains(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.records[out[i]].seq < s.records[out[j]].seq
	})
	return out
}

// Count returns the number of suppressed nodes still in the document.
func (s *Suppressor) Count() int {
	count := 0
	for n := range s.records {
		if s.doc.Contains(n) {
			count++
		}
	}
	return count
}

// Prune forgets nodes that left the document. A pruned node carries neither
// the marker nor the hiding style if it is inserted again.
func (s *Suppressor) Prune() int {
	var detached []*html.Node
	for n := range s.records {
		if !s.doc.Contains(n) {
			detached = append(detached, n)
		}
	}
	for _, n := range detached {
		s.Unsuppress(n)
	}
	if len(detached) > 0 {
		s.logger.Debug().Int("nodes", len(detached)).Msg("pruned detached nodes")
	}
	return len(detached)
}

// Show reveals a suppressed node without forgetting it: the style snapshot is
// restored and the marker kept.
func (s *Suppressor) Show(n *html.Node) {
	if rec, ok := s.records[n]; ok {
		s.restore(n, rec)
	}
}

// Restage schedules a shown node to be hidden again.
func (s *Suppressor) Restage(n *html.Node) {
	if _, ok := s.records[n]; ok {
		s.stage(n)
	}
}

// Toggle disables or re-enables suppression as a whole.
func (s *Suppressor) Toggle(enabled bool) {
	s.sheet.SetEnabled(enabled)
	nodes, err := s.doc.QueryAll(nil, "["+s.marker+"]")
	if err != nil {
		return
	}
	for _, n := range nodes {
		if enabled {
			s.Restage(n)
		} else {
			s.Show(n)
		}
	}
	if !enabled {
		s.batch.Cancel(hideBatchKey)
		s.staged = nil
		clear(s.stagedSet)
	}
}

// Close stops watching styles and cancels any pending pass. Suppressed nodes
// stay hidden.
func (s *Suppressor) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.batch.Destroy()
	if s.observer != nil {
		s.observer.Disconnect()
	}
	s.staged = nil
	clear(s.stagedSet)
}

func (s *Suppressor) restore(n *html.Node, rec *suppression) {
	if rec.hadStyle {
		s.doc.SetAttribute(n, "style", rec.style)
	} else {
		s.doc.RemoveAttribute(n, "style")
	}
}

func (s *Suppressor) stage(n *html.Node) {
	if !s.stagedSet[n] {
		s.stagedSet[n] = true
		s.staged = append(s.staged, n)
	}
	s.batch.Post(hideBatchKey, s.process)
}

func (s *Suppressor) unstage(n *html.Node) {
	if !s.stagedSet[n] {
		return
	}
	delete(s.stagedSet, n)
	for i, x := range s.staged {
		if x == n {
			s.staged = append(s.staged[:i], s.staged[i+1:]...)
			break
		}
	}
}

// process is the batched write pass.
func (s *Suppressor) process() {
	if s.sheet.Disabled() {
		return
	}
	type write struct {
		node  *html.Node
		style string
	}
	writes := make([]write, 0, len(s.staged))
	for _, n := range s.staged {
		if _, ok := s.records[n]; !ok || !dom.HasAttr(n, s.marker) || !s.doc.Contains(n) {
			continue
		}
		attr, _ := dom.Attr(n, "style")
		if strings.HasSuffix(strings.TrimSpace(attr), hideDeclaration) {
			continue
		}
		if attr != "" && !strings.HasSuffix(attr, ";") {
			attr += "; "
		}
		writes = append(writes, write{node: n, style: attr + hideDeclaration})
	}
	s.staged = nil
	clear(s.stagedSet)

	for _, w := range writes {
		s.doc.SetAttribute(w.node, "style", w.style)
	}
	if len(writes) > 0 {
		s.logger.Trace().Int("nodes", len(writes)).Msg("hide pass")
	}
}

func (s *Suppressor) onStyleMutations(records []dom.MutationRecord) {
	if s.sheet.Disabled() || s.closed {
		return
	}
	for _, r := range records {
		if _, ok := s.records[r.Target]; ok && dom.HasAttr(r.Target, s.marker) {
			s.stage(r.Target)
		}
	}
}
