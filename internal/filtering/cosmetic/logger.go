package cosmetic

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/procedural"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/mainloop"
	"github.com/bnema/cosmetic/internal/telemetry"
)

const (
	loggerJobsKey   = "logger-jobs"
	loggerRetryWait = 100 * time.Millisecond
)

type jobKind int

const (
	jobSimple jobKind = iota
	jobComplex
	jobProcedural
)

// loggerJob is one pending lookup. node is nil for whole-document jobs.
type loggerJob struct {
	kind jobKind
	node *html.Node
}

// selectorDict is an ordered set of not-yet-matched selectors.
type selectorDict struct {
	order []string
	set   map[string]bool
}

func (d *selectorDict) add(sel string) {
	if d.set == nil {
		d.set = make(map[string]bool)
	}
	if !d.set[sel] {
		d.set[sel] = true
		d.order = append(d.order, sel)
	}
}

func (d *selectorDict) remove(sel string) {
	delete(d.set, sel)
}

func (d *selectorDict) size() int { return len(d.set) }

// live returns remaining selectors in insertion order, compacting the list.
func (d *selectorDict) live() []string {
	out := d.order[:0]
	for _, sel := range d.order {
		if d.set[sel] {
			out = append(out, sel)
		}
	}
	d.order = out
	return append([]string(nil), out...)
}

// CosmeticLogger reports which selectors actually matched content. It only
// reads the document and never influences filtering.
type CosmeticLogger struct {
	ctx    context.Context
	doc    *dom.Document
	store  *RuleStore
	sink   telemetry.Sink
	page   logging.Page
	logger zerolog.Logger

	queueMax int
	budget   time.Duration
	timers   *mainloop.Coalescer

	simple     selectorDict
	complex    selectorDict
	procedural []*procedural.Selector
	queue      []loggerJob

	sends  errgroup.Group
	closed bool
}

// NewCosmeticLogger creates a logger reporting to sink. Reports carry the
// page attached to ctx, or the document URL when there is none.
func NewCosmeticLogger(ctx context.Context, doc *dom.Document, store *RuleStore, sink telemetry.Sink, opts Options) *CosmeticLogger {
	opts = opts.withDefaults()
	page, ok := logging.PageFromContext(ctx)
	if !ok {
		page = logging.NewPage("", doc.URL())
	}
	return &CosmeticLogger{
		ctx:      ctx,
		doc:      doc,
		store:    store,
		sink:     sink,
		page:     page,
		logger:   logging.FromContext(ctx).With().Str("component", "cosmetic-logger").Logger(),
		queueMax: opts.LoggerQueueMax,
		budget:   opts.LoggerFrameBudget,
		timers:   mainloop.NewCoalescer(doc.Scheduler(), opts.FrameTimeout),
	}
}

// QueueLen returns the number of pending jobs.
func (l *CosmeticLogger) QueueLen() int { return len(l.queue) }

// DOMChanged implements Listener.
func (l *CosmeticLogger) DOMChanged(added []*html.Node, removed bool) {
	if l.closed {
		return
	}
	if len(added) == 0 && !removed {
		l.domCreated()
		return
	}
	if l.simple.size() == 0 && l.complex.size() == 0 {
		return
	}
	if len(l.queue) <= l.queueMax {
		if l.simple.size() > 0 {
			for _, n := range added {
				l.queue = append(l.queue, loggerJob{kind: jobSimple, node: n})
			}
		}
		if l.complex.size() > 0 {
			l.queue = append(l.queue, loggerJob{kind: jobComplex})
		}
		if len(l.procedural) > 0 {
			l.queue = append(l.queue, loggerJob{kind: jobProcedural})
		}
	}
	l.schedule(loggerRetryWait)
}

func (l *CosmeticLogger) domCreated() {
	for _, sel := range l.store.AllDeclarativeSelectors() {
		if hasCombinator(sel) {
			l.complex.add(sel)
		} else {
			l.simple.add(sel)
		}
	}
	if l.simple.size() > 0 {
		l.queue = append(l.queue, loggerJob{kind: jobSimple})
	}
	if l.complex.size() > 0 {
		l.queue = append(l.queue, loggerJob{kind: jobComplex})
	}
	l.procedural = l.store.AllProceduralSelectors()
	if len(l.procedural) > 0 {
		l.queue = append(l.queue, loggerJob{kind: jobProcedural})
	}
	l.schedule(0)
}

func (l *CosmeticLogger) schedule(delay time.Duration) {
	if len(l.queue) == 0 {
		return
	}
	if delay <= 0 {
		l.timers.Post(loggerJobsKey, l.processQueue)
		return
	}
	l.timers.PostAfter(loggerJobsKey, delay, func() {
		l.timers.Post(loggerJobsKey, l.processQueue)
	})
}

func (l *CosmeticLogger) processQueue() {
	if l.closed {
		return
	}
	sched := l.doc.Scheduler()
	t0 := sched.Now()
	var matched []string
	for len(l.queue) > 0 {
		job := l.queue[0]
		l.queue = l.queue[1:]
		matched = l.lookup(job, matched)
		if sched.Now().Sub(t0) > l.budget {
			break
		}
	}
	if len(matched) > 0 {
		l.send(matched)
	}
	if l.simple.size() == 0 && l.complex.size() == 0 && len(l.procedural) == 0 {
		l.queue = nil
	}
	l.schedule(loggerRetryWait)
}

func (l *CosmeticLogger) lookup(job loggerJob, out []string) []string {
	switch job.kind {
	case jobSimple:
		for _, sel := range l.simple.live() {
			if l.matchesIn(job.node, sel) {
				out = append(out, sel)
				l.simple.remove(sel)
			}
		}
	case jobComplex:
		for _, sel := range l.complex.live() {
			if l.matchesIn(nil, sel) {
				out = append(out, sel)
				l.complex.remove(sel)
			}
		}
	case jobProcedural:
		remaining := l.procedural[:0]
		for _, sel := range l.procedural {
			if l.testProcedural(sel) {
				out = append(out, sel.Raw)
				continue
			}
			remaining = append(remaining, sel)
		}
		l.procedural = remaining
	}
	return out
}

// matchesIn reports whether scope or one of its descendants matches sel.
// A nil scope is the whole document.
func (l *CosmeticLogger) matchesIn(scope *html.Node, sel string) bool {
	if scope != nil {
		if !l.doc.Contains(scope) {
			return false
		}
		if ok, _ := l.doc.Matches(scope, sel); ok {
			return true
		}
	}
	n, err := l.doc.QueryOne(scope, sel)
	return err == nil && n != nil
}

func (l *CosmeticLogger) testProcedural(sel *procedural.Selector) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return sel.Test(l.doc, nil)
}

func (l *CosmeticLogger) send(matched []string) {
	report := telemetry.Report{
		PageID:           l.page.ID,
		FrameURL:         l.page.URL,
		FrameHostname:    l.page.Host,
		MatchedSelectors: matched,
		At:               l.doc.Scheduler().Now(),
	}
	l.sends.Go(func() error {
		if err := l.sink.LogCosmeticFilteringData(l.ctx, report); err != nil {
			l.logger.Debug().Err(err).Msg("telemetry sink failed")
		}
		return nil
	})
}

// Close stops processing and waits for in-flight reports.
func (l *CosmeticLogger) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.timers.Destroy()
	l.queue = nil
	_ = l.sends.Wait()
}
