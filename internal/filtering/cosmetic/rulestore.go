package cosmetic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/procedural"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
)

const commitKey = "commit"

// RuleType forces the simple/complex classification of inserted selectors.
type RuleType int

const (
	// TypeAuto classifies by looking for combinators.
	TypeAuto RuleType = iota
	TypeSimple
	TypeComplex
)

// RuleOptions qualifies AddDeclarativeRule.
type RuleOptions struct {
	// Lazy marks generic rules: they are handed once for the whole page.
	Lazy bool
	Type RuleType
}

// RejectedRule is a rule entry refused at ingestion.
type RejectedRule struct {
	Raw string
	Err error
}

// RuleStore owns the declarative selector partitions and the procedural
// filterer, and commits them against the document.
type RuleStore struct {
	doc    *dom.Document
	sup    *Suppressor
	sheet  *UserStylesheet
	logger zerolog.Logger

	partitions [partitionCount]*partition
	pending    [partitionCount][]string

	domReady     bool
	addedNodes   []*html.Node
	addedSet     map[*html.Node]bool
	removedNodes bool

	// owned holds the nodes hidden by declarative selectors.
	owned map[*html.Node]bool

	commitTimer *mainloop.Coalescer
	procedural  *ProceduralFilterer
}

// NewRuleStore creates a store applying matches through sup.
func NewRuleStore(ctx context.Context, doc *dom.Document, sup *Suppressor, opts Options) *RuleStore {
	opts = opts.withDefaults()
	s := &RuleStore{
		doc:         doc,
		sup:         sup,
		sheet:       sup.sheet,
		logger:      logging.FromContext(ctx).With().Str("component", "rulestore").Logger(),
		domReady:    doc.ReadyState() != dom.StateLoading,
		addedSet:    make(map[*html.Node]bool),
		owned:       make(map[*html.Node]bool),
		commitTimer: mainloop.NewCoalescer(doc.Scheduler(), opts.FrameTimeout),
	}
	for i := range s.partitions {
		s.partitions[i] = newPartition()
	}
	s.procedural = NewProceduralFilterer(ctx, doc, sup)
	return s
}

// Procedural returns the procedural filterer.
func (s *RuleStore) Procedural() *ProceduralFilterer { return s.procedural }

// Stylesheet returns the user stylesheet.
func (s *RuleStore) Stylesheet() *UserStylesheet { return s.sheet }

func isHideDeclaration(decl string) bool {
	return strings.TrimSpace(decl) == hideDeclaration
}

func splitSelectors(selectors []string) []string {
	var out []string
	for _, entry := range selectors {
		for _, sel := range strings.Split(entry, ",\n") {
			if sel = strings.TrimSpace(sel); sel != "" {
				out = append(out, sel)
			}
		}
	}
	return out
}

func (s *RuleStore) classify(sel string, opts RuleOptions) Partition {
	complex := opts.Type == TypeComplex ||
		(opts.Type == TypeAuto && hasCombinator(sel))
	switch {
	case opts.Lazy && complex:
		return GenericComplex
	case opts.Lazy:
		return GenericSimple
	case complex:
		return SpecificComplex
	default:
		return SpecificSimple
	}
}

// AddDeclarativeRule inserts selectors with the given declarations and
// reports whether new work was created. Hide rules are classified into the
// partitions; other declarations go straight to the user stylesheet.
// Selectors the document cannot parse are dropped one by one.
func (s *RuleStore) AddDeclarativeRule(selectors []string, declarations string, opts RuleOptions) bool {
	valid := make([]string, 0, len(selectors))
	for _, sel := range splitSelectors(selectors) {
		if err := s.doc.ValidateSelector(sel); err != nil {
			s.logger.Debug().Err(err).Msg("rejecting selector")
			continue
		}
		valid = append(valid, sel)
	}
	if len(valid) == 0 {
		return false
	}

	if !isHideDeclaration(declarations) {
		return s.sheet.Add(strings.Join(valid, ",\n") + "\n{ " + strings.TrimSpace(declarations) + " }")
	}

	var added []string
	for _, sel := range valid {
		if _, ok := s.PartitionOf(sel); ok {
			continue
		}
		p := s.classify(sel, opts)
		s.partitions[p].add(sel)
		s.pending[p] = append(s.pending[p], sel)
		added = append(added, sel)
	}
	if len(added) == 0 {
		return false
	}
	s.sheet.Add(strings.Join(added, ",\n") + hideBlock)
	return true
}

// AddProceduralRule ingests one serialized rule. Three encodings exist:
// {"style":[selector, declarations]}, {"pseudoclass":true,"raw":selector}
// and the task pipeline form handled by the procedural filterer.
func (s *RuleStore) AddProceduralRule(raw string) (bool, error) {
	var probe struct {
		Style       []string        `json:"style"`
		Pseudoclass bool            `json:"pseudoclass"`
		Raw         string          `json:"raw"`
		Tasks       json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	switch {
	case probe.Style != nil:
		if len(probe.Style) != 2 {
			return false, fmt.Errorf("%w: style expects [selector, declarations]", ErrMalformedRule)
		}
		return s.AddDeclarativeRule([]string{probe.Style[0]}, probe.Style[1], RuleOptions{}), nil
	case probe.Pseudoclass:
		if probe.Raw == "" {
			return false, fmt.Errorf("%w: pseudoclass rule without raw selector", ErrMalformedRule)
		}
		return s.AddDeclarativeRule([]string{probe.Raw}, hideDeclaration, RuleOptions{}), nil
	case probe.Tasks != nil:
		added, err := s.procedural.AddSelector(raw)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrMalformedRule, err)
		}
		return added, nil
	}
	return false, fmt.Errorf("%w: unrecognized encoding", ErrMalformedRule)
}

// AddProceduralRules ingests a batch. Bad entries are rejected individually;
// a commit is scheduled when anything new was added.
func (s *RuleStore) AddProceduralRules(raws []string) []RejectedRule {
	var rejected []RejectedRule
	mustCommit := false
	for _, raw := range raws {
		added, err := s.AddProceduralRule(raw)
		if err != nil {
			s.logger.Debug().Err(err).Str("rule", raw).Msg("rejecting procedural rule")
			rejected = append(rejected, RejectedRule{Raw: raw, Err: err})
			continue
		}
		mustCommit = mustCommit || added
	}
	if mustCommit {
		s.Commit(false)
	}
	return rejected
}

// PartitionOf returns the partition holding sel.
func (s *RuleStore) PartitionOf(sel string) (Partition, bool) {
	for i, p := range s.partitions {
		if p.has(sel) {
			return Partition(i), true
		}
	}
	return 0, false
}

// Selectors returns the members of p in insertion order.
func (s *RuleStore) Selectors(p Partition) []string {
	return append([]string(nil), s.partitions[p].order...)
}

// Aggregated returns the joined selector list of p.
func (s *RuleStore) Aggregated(p Partition) string {
	return s.partitions[p].aggregate()
}

// AllDeclarativeSelectors returns every partition member.
func (s *RuleStore) AllDeclarativeSelectors() []string {
	var out []string
	for _, p := range s.partitions {
		out = append(out, p.order...)
	}
	return out
}

// AllProceduralSelectors returns the tracked procedural selectors.
func (s *RuleStore) AllProceduralSelectors() []*procedural.Selector {
	return s.procedural.Selectors()
}

// DOMChanged implements Listener.
func (s *RuleStore) DOMChanged(added []*html.Node, removed bool) {
	if len(added) == 0 && !removed {
		s.domReady = true
		s.addedNodes = nil
		clear(s.addedSet)
		s.removedNodes = false
		s.procedural.domCreated()
		s.Commit(false)
		return
	}
	for _, n := range added {
		if !s.addedSet[n] {
			s.addedSet[n] = true
			s.addedNodes = append(s.addedNodes, n)
		}
	}
	s.removedNodes = s.removedNodes || removed
	if removed {
		s.sup.Prune()
	}
	s.procedural.domChanged(len(added) > 0, removed)
	s.Commit(false)
}

// Commit applies pending work on the next frame, or now.
func (s *RuleStore) Commit(now bool) {
	if now {
		s.commitTimer.Cancel(commitKey)
		s.commitNow()
		return
	}
	s.commitTimer.Post(commitKey, s.commitNow)
}

func (s *RuleStore) commitNow() {
	s.commitDeclarative()
	s.procedural.commitNow()
}

func (s *RuleStore) commitDeclarative() {
	if !s.domReady || s.sheet.Disabled() {
		return
	}

	// Filter set changed: newly added selectors are matched against the whole
	// document once.
	for p := range s.pending {
		if len(s.pending[p]) == 0 {
			continue
		}
		s.suppressAll(s.query(nil, strings.Join(s.pending[p], ",\n")))
		s.logger.Debug().Str("partition", Partition(p).String()).Int("selectors", len(s.pending[p])).Msg("filter set changed")
		s.pending[p] = nil
	}

	nodesAdded := len(s.addedNodes) > 0
	if !nodesAdded && !s.removedNodes {
		return
	}

	if nodesAdded {
		for _, p := range []Partition{SpecificSimple, GenericSimple} {
			if s.partitions[p].len() == 0 {
				continue
			}
			agg := s.partitions[p].aggregate()
			for _, n := range s.addedNodes {
				if !s.doc.Contains(n) {
					continue
				}
				if ok, _ := s.doc.Matches(n, agg); ok {
					s.hide(n)
				}
				s.suppressAll(s.query(n, agg))
			}
		}
	}
	for _, p := range []Partition{SpecificComplex, GenericComplex} {
		if s.partitions[p].len() == 0 {
			continue
		}
		s.suppressAll(s.query(nil, s.partitions[p].aggregate()))
	}
	if s.removedNodes {
		s.releaseStale()
	}

	s.addedNodes = nil
	clear(s.addedSet)
	s.removedNodes = false
}

func (s *RuleStore) query(scope *html.Node, sel string) []*html.Node {
	nodes, err := s.doc.QueryAll(scope, sel)
	if err != nil {
		s.logger.Debug().Err(err).Msg("selector query failed")
		return nil
	}
	return nodes
}

func (s *RuleStore) suppressAll(nodes []*html.Node) {
	for _, n := range nodes {
		s.hide(n)
	}
}

// hide suppresses n. The store only owns nodes nothing else had hidden.
func (s *RuleStore) hide(n *html.Node) {
	if s.owned[n] || s.sup.IsSuppressed(n) {
		return
	}
	s.sup.Suppress(n)
	if s.sup.IsSuppressed(n) {
		s.owned[n] = true
	}
}

// releaseStale unhides owned nodes no declarative selector matches anymore,
// such as the target of a sibling combinator whose sibling went away.
// Detached nodes are forgotten.
func (s *RuleStore) releaseStale() {
	var aggs []string
	for _, p := range s.partitions {
		if p.len() > 0 {
			aggs = append(aggs, p.aggregate())
		}
	}
	for n := range s.owned {
		if !s.doc.Contains(n) {
			delete(s.owned, n)
			continue
		}
		if s.matchesAny(n, aggs) {
			continue
		}
		delete(s.owned, n)
		s.sup.Unsuppress(n)
		s.logger.Debug().Str("tag", n.Data).Msg("declarative match vanished")
	}
}

func (s *RuleStore) matchesAny(n *html.Node, aggs []string) bool {
	for _, agg := range aggs {
		if ok, _ := s.doc.Matches(n, agg); ok {
			return true
		}
	}
	return false
}

// Toggle disables or re-enables cosmetic filtering for the page.
func (s *RuleStore) Toggle(enabled bool) {
	s.sup.Toggle(enabled)
	if enabled {
		s.Commit(false)
	}
}

// FilteredElementCount counts distinct nodes matched by the user stylesheet.
func (s *RuleStore) FilteredElementCount() int {
	seen := make(map[*html.Node]bool)
	for _, sel := range s.sheet.Selectors() {
		for _, n := range s.query(nil, sel) {
			seen[n] = true
		}
	}
	return len(seen)
}

// Close cancels pending commits.
func (s *RuleStore) Close() {
	s.commitTimer.Destroy()
}
