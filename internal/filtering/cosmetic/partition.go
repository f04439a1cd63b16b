package cosmetic

import "strings"

// Partition is one of the four disjoint declarative selector sets.
type Partition int

const (
	GenericSimple Partition = iota
	GenericComplex
	SpecificSimple
	SpecificComplex
	partitionCount
)

func (p Partition) String() string {
	switch p {
	case GenericSimple:
		return "generic-simple"
	case GenericComplex:
		return "generic-complex"
	case SpecificSimple:
		return "specific-simple"
	case SpecificComplex:
		return "specific-complex"
	}
	return "unknown"
}

// Simple reports whether selectors of p match a node in isolation.
func (p Partition) Simple() bool {
	return p == GenericSimple || p == SpecificSimple
}

// hasCombinator reports whether sel relates more than one compound selector.
func hasCombinator(sel string) bool {
	return strings.ContainsAny(sel, " >+~")
}

// partition is an ordered selector set with a lazily built aggregate.
type partition struct {
	members    map[string]bool
	order      []string
	aggregated string
	stale      bool
	rebuilds   int
}

func newPartition() *partition {
	return &partition{members: make(map[string]bool)}
}

func (p *partition) has(sel string) bool { return p.members[sel] }

func (p *partition) add(sel string) bool {
	if p.members[sel] {
		return false
	}
	p.members[sel] = true
	p.order = append(p.order, sel)
	p.stale = true
	return true
}

func (p *partition) len() int { return len(p.order) }

// aggregate returns the ",\n"-joined member list, rebuilding it only after
// membership changed.
func (p *partition) aggregate() string {
	if p.stale {
		p.aggregated = strings.Join(p.order, ",\n")
		p.stale = false
		p.rebuilds++
	}
	return p.aggregated
}
