package cosmetic

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
)

// Listener receives coalesced tree changes. An empty added list with removed
// false is the initial notification: the DOM exists and should be surveyed
// as a whole. The added slice must not be retained.
type Listener interface {
	DOMChanged(added []*html.Node, removed bool)
}

const watcherFrameKey = "dom-changed"

// ignoredTags never host content worth filtering.
var ignoredTags = map[string]bool{
	"br":     true,
	"head":   true,
	"link":   true,
	"meta":   true,
	"script": true,
	"style":  true,
}

// Watcher observes the document and notifies listeners at most once per
// frame. It never mutates the tree.
type Watcher struct {
	doc    *dom.Document
	logger zerolog.Logger

	ready       bool
	unavailable bool
	stopped     bool
	observer    *dom.MutationObserver
	observing   bool
	frame       *mainloop.Coalescer
	waitLoaded  func()

	addedLists [][]*html.Node
	added      []*html.Node
	removed    bool
	listeners  []Listener
}

// NewWatcher creates a watcher over doc. Observation starts with Start.
// Without an observation primitive the watcher never notifies anyone.
func NewWatcher(ctx context.Context, doc *dom.Document, opts Options) *Watcher {
	opts = opts.withDefaults()
	w := &Watcher{
		doc:    doc,
		logger: logging.FromContext(ctx).With().Str("component", "watcher").Logger(),
		frame:  mainloop.NewCoalescer(doc.Scheduler(), opts.FrameTimeout),
	}
	obs, err := doc.NewMutationObserver(w.onMutations)
	if err != nil {
		w.unavailable = true
		w.logger.Debug().Err(err).Msg("tree observation unavailable, watcher is inert")
	} else {
		w.observer = obs
	}
	return w
}

// AddListener registers l. When the DOM is already ready l immediately gets
// the initial notification. A stopped watcher accepts no listeners.
func (w *Watcher) AddListener(l Listener) {
	if w.stopped {
		return
	}
	for _, x := range w.listeners {
		if x == l {
			return
		}
	}
	w.listeners = append(w.listeners, l)
	if w.ready && !w.unavailable {
		l.DOMChanged(nil, false)
	}
	w.startObserver()
}

// RemoveListener deregisters l. Removing the last listener stops observation.
func (w *Watcher) RemoveListener(l Listener) {
	for i, x := range w.listeners {
		if x == l {
			w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
			if len(w.listeners) == 0 {
				w.stopObserver()
			}
			return
		}
	}
}

// Listeners returns the number of registered listeners.
func (w *Watcher) Listeners() int { return len(w.listeners) }

// Start begins watching. When the document is still loading it waits for
// DOMContentLoaded.
func (w *Watcher) Start() {
	if w.stopped || w.ready || w.waitLoaded != nil {
		return
	}
	if w.doc.ReadyState() != dom.StateLoading {
		w.NotifyReady()
		return
	}
	w.waitLoaded = w.doc.OnContentLoaded(func() {
		w.waitLoaded = nil
		w.NotifyReady()
	})
}

// NotifyReady marks the DOM ready, sends the initial notification and starts
// observing.
func (w *Watcher) NotifyReady() {
	if w.stopped || w.ready {
		return
	}
	w.ready = true
	if w.unavailable {
		return
	}
	w.processListeners()
	w.startObserver()
}

// Ready reports whether the DOM was declared ready.
func (w *Watcher) Ready() bool { return w.ready }

// Observing reports whether the document is being observed.
func (w *Watcher) Observing() bool { return w.observing }

// Available reports whether the document offers tree observation.
func (w *Watcher) Available() bool { return !w.unavailable }

// Stopped reports whether Stop was called.
func (w *Watcher) Stopped() bool { return w.stopped }

// Stop stops observation for good and drops pending notifications.
func (w *Watcher) Stop() {
	w.stopped = true
	if w.waitLoaded != nil {
		w.waitLoaded()
		w.waitLoaded = nil
	}
	w.stopObserver()
	w.frame.Destroy()
}

func (w *Watcher) startObserver() {
	if w.stopped || w.observing || !w.ready || w.unavailable || len(w.listeners) == 0 {
		return
	}
	root := w.doc.DocumentElement()
	if root == nil {
		root = w.doc.Root()
	}
	w.observer.Observe(root, dom.ObserveOptions{ChildList: true, Subtree: true})
	w.observing = true
}

func (w *Watcher) stopObserver() {
	if !w.observing {
		return
	}
	w.observer.Disconnect()
	w.observing = false
	w.frame.Cancel(watcherFrameKey)
	w.addedLists = nil
	w.added = nil
	w.removed = false
}

func (w *Watcher) onMutations(records []dom.MutationRecord) {
	for _, r := range records {
		// Rewriting the text of a <style> or <script> is not a layout change.
		if r.Target.Data == "style" || r.Target.Data == "script" {
			continue
		}
		if len(r.AddedNodes) > 0 {
			w.addedLists = append(w.addedLists, r.AddedNodes)
		}
		if len(r.RemovedNodes) > 0 {
			w.removed = true
		}
	}
	if len(w.addedLists) > 0 || w.removed {
		w.frame.Post(watcherFrameKey, w.flush)
	}
}

func (w *Watcher) flush() {
	for _, list := range w.addedLists {
		for _, n := range list {
			if n.Type == html.ElementNode && !ignoredTags[n.Data] && dom.ParentElement(n) != nil {
				w.added = append(w.added, n)
			}
		}
	}
	w.addedLists = nil
	if len(w.added) == 0 && !w.removed {
		return
	}
	w.processListeners()
}

func (w *Watcher) processListeners() {
	listeners := append([]Listener(nil), w.listeners...)
	for _, l := range listeners {
		l.DOMChanged(w.added, w.removed)
	}
	w.added = nil
	w.removed = false
}
