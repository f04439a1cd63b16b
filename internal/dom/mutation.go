package dom

import (
	"golang.org/x/net/html"
)

// MutationType distinguishes structural and attribute records.
type MutationType string

const (
	MutationChildList  MutationType = "childList"
	MutationAttributes MutationType = "attributes"
)

// MutationRecord describes a single change, as delivered to observers.
type MutationRecord struct {
	Type          MutationType
	Target        *html.Node
	AddedNodes    []*html.Node
	RemovedNodes  []*html.Node
	AttributeName string
	OldValue      string
	HadOldValue   bool
}

// ObserveOptions selects which mutations an observer receives for a target.
type ObserveOptions struct {
	ChildList       bool
	Attributes      bool
	Subtree         bool
	AttributeFilter []string
}

func (o ObserveOptions) wantsAttribute(name string) bool {
	if !o.Attributes && len(o.AttributeFilter) == 0 {
		return false
	}
	if len(o.AttributeFilter) == 0 {
		return true
	}
	for _, f := range o.AttributeFilter {
		if f == name {
			return true
		}
	}
	return false
}

// MutationObserver batches records and delivers them in a microtask.
type MutationObserver struct {
	doc       *Document
	callback  func([]MutationRecord)
	targets   map[*html.Node]ObserveOptions
	queue     []MutationRecord
	scheduled bool
}

// NewMutationObserver creates an observer. It fails with ErrObserverUnavailable
// when the host has no observation primitive.
func (d *Document) NewMutationObserver(callback func([]MutationRecord)) (*MutationObserver, error) {
	if d.noObserver {
		return nil, ErrObserverUnavailable
	}
	return &MutationObserver{
		doc:      d,
		callback: callback,
		targets:  make(map[*html.Node]ObserveOptions),
	}, nil
}

// Observe starts (or updates) observation of target.
func (o *MutationObserver) Observe(target *html.Node, opts ObserveOptions) {
	if target == nil {
		return
	}
	if len(o.targets) == 0 {
		o.doc.observers = append(o.doc.observers, o)
	}
	o.targets[target] = opts
}

// Unobserve stops observing a single target.
func (o *MutationObserver) Unobserve(target *html.Node) {
	delete(o.targets, target)
	if len(o.targets) == 0 {
		o.detach()
	}
}

// Disconnect stops all observation and drops undelivered records.
func (o *MutationObserver) Disconnect() {
	o.targets = make(map[*html.Node]ObserveOptions)
	o.queue = nil
	o.detach()
}

// TakeRecords returns and clears undelivered records.
func (o *MutationObserver) TakeRecords() []MutationRecord {
	records := o.queue
	o.queue = nil
	return records
}

// Observing reports how many targets are observed.
func (o *MutationObserver) Observing() int { return len(o.targets) }

func (o *MutationObserver) detach() {
	obs := o.doc.observers
	for i, x := range obs {
		if x == o {
			o.doc.observers = append(obs[:i], obs[i+1:]...)
			return
		}
	}
}

func (o *MutationObserver) interested(target *html.Node, match func(ObserveOptions) bool) bool {
	for p := target; p != nil; p = p.Parent {
		opts, ok := o.targets[p]
		if !ok {
			continue
		}
		if p != target && !opts.Subtree {
			continue
		}
		if match(opts) {
			return true
		}
	}
	return false
}

func (o *MutationObserver) enqueue(rec MutationRecord) {
	o.queue = append(o.queue, rec)
	if o.scheduled {
		return
	}
	o.scheduled = true
	o.doc.sched.QueueMicrotask(func() {
		o.scheduled = false
		records := o.TakeRecords()
		if len(records) == 0 {
			return
		}
		o.callback(records)
	})
}

func (d *Document) queueChildList(parent *html.Node, added, removed []*html.Node) {
	if len(d.observers) == 0 {
		return
	}
	for _, o := range append([]*MutationObserver(nil), d.observers...) {
		if !o.interested(parent, func(opts ObserveOptions) bool { return opts.ChildList }) {
			continue
		}
		o.enqueue(MutationRecord{
			Type:         MutationChildList,
			Target:       parent,
			AddedNodes:   added,
			RemovedNodes: removed,
		})
	}
}

func (d *Document) queueAttribute(n *html.Node, name, old string, had bool) {
	if len(d.observers) == 0 {
		return
	}
	for _, o := range append([]*MutationObserver(nil), d.observers...) {
		if !o.interested(n, func(opts ObserveOptions) bool { return opts.wantsAttribute(name) }) {
			continue
		}
		o.enqueue(MutationRecord{
			Type:          MutationAttributes,
			Target:        n,
			AttributeName: name,
			OldValue:      old,
			HadOldValue:   had,
		})
	}
}
