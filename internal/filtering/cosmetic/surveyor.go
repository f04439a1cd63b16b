package cosmetic

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/messaging"
)

// Surveyor collects id and class tokens from the document and asks the
// backend for the selectors keyed by the ones it has not asked about yet.
type Surveyor struct {
	doc     *dom.Document
	client  *messaging.Client
	store   *RuleStore
	watcher *Watcher
	logger  zerolog.Logger

	threshold      int
	missCount      int
	queriedIDs     map[string]bool
	queriedClasses map[string]bool
	cost           time.Duration
	lookups        int
	stopped        bool
}

// NewSurveyor creates a surveyor and registers it with watcher.
func NewSurveyor(ctx context.Context, doc *dom.Document, client *messaging.Client, store *RuleStore, watcher *Watcher, opts Options) *Surveyor {
	opts = opts.withDefaults()
	s := &Surveyor{
		doc:            doc,
		client:         client,
		store:          store,
		watcher:        watcher,
		logger:         logging.FromContext(ctx).With().Str("component", "surveyor").Logger(),
		threshold:      opts.SurveyorMissThreshold,
		queriedIDs:     make(map[string]bool),
		queriedClasses: make(map[string]bool),
	}
	watcher.AddListener(s)
	return s
}

// MissCount is the number of consecutive surveys that produced no new
// selectors.
func (s *Surveyor) MissCount() int { return s.missCount }

// Lookups is the number of requests sent to the backend.
func (s *Surveyor) Lookups() int { return s.lookups }

// Stopped reports whether the surveyor has shut itself down.
func (s *Surveyor) Stopped() bool { return s.stopped }

// Shutdown deregisters the surveyor. It never queries again.
func (s *Surveyor) Shutdown() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.watcher.RemoveListener(s)
	s.logger.Debug().Int("misses", s.missCount).Int("lookups", s.lookups).Msg("surveyor stopped")
}

// DOMChanged implements Listener.
func (s *Surveyor) DOMChanged(added []*html.Node, removed bool) {
	if s.stopped {
		return
	}
	if len(added) == 0 && !removed {
		s.survey(s.query(nil, "[id]"), s.query(nil, "[class]"))
		return
	}
	if s.missCount > s.threshold {
		s.Shutdown()
		return
	}
	if len(added) == 0 {
		return
	}
	var idNodes, classNodes []*html.Node
	for _, n := range added {
		idNodes = append(idNodes, n)
		classNodes = append(classNodes, n)
		if dom.ChildElementCount(n) == 0 {
			continue
		}
		idNodes = append(idNodes, s.query(n, "[id]")...)
		classNodes = append(classNodes, s.query(n, "[class]")...)
	}
	s.survey(idNodes, classNodes)
}

func (s *Surveyor) query(scope *html.Node, sel string) []*html.Node {
	nodes, err := s.doc.QueryAll(scope, sel)
	if err != nil {
		s.logger.Debug().Err(err).Msg("survey query failed")
		return nil
	}
	return nodes
}

func (s *Surveyor) survey(idNodes, classNodes []*html.Node) {
	sched := s.doc.Scheduler()
	t0 := sched.Now()

	var ids, classes []string
	for _, n := range idNodes {
		v, ok := dom.Attr(n, "id")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v != "" && !s.queriedIDs[v] {
			s.queriedIDs[v] = true
			ids = append(ids, v)
		}
	}
	for _, n := range classNodes {
		v, ok := dom.Attr(n, "class")
		if !ok {
			continue
		}
		for _, token := range strings.Fields(v) {
			if !s.queriedClasses[token] {
				s.queriedClasses[token] = true
				classes = append(classes, token)
			}
		}
	}
	s.cost += sched.Now().Sub(t0)

	if len(ids) == 0 && len(classes) == 0 {
		s.miss()
		return
	}
	s.lookups++
	s.client.RetrieveGenericSelectors(messaging.GenericSelectorsRequest{
		FrameURL: s.doc.URL(),
		IDs:      ids,
		Classes:  classes,
		Cost:     float64(s.cost) / float64(time.Millisecond),
	}).Then(s.onResponse)
}

func (s *Surveyor) onResponse(resp *messaging.GenericSelectorsResponse) {
	if s.stopped {
		return
	}
	if resp == nil {
		s.miss()
		return
	}
	mustCommit := false
	if len(resp.Simple) > 0 && s.store.AddDeclarativeRule(resp.Simple, hideDeclaration, RuleOptions{Type: TypeSimple}) {
		mustCommit = true
	}
	if len(resp.Complex) > 0 && s.store.AddDeclarativeRule(resp.Complex, hideDeclaration, RuleOptions{Type: TypeComplex}) {
		mustCommit = true
	}
	if len(resp.Hide) > 0 && s.store.AddDeclarativeRule(resp.Hide, hideDeclaration, RuleOptions{}) {
		mustCommit = true
	}
	if !mustCommit {
		s.miss()
		return
	}
	s.missCount = 0
	s.store.Commit(false)
}

func (s *Surveyor) miss() {
	s.missCount++
	if s.missCount > s.threshold {
		s.Shutdown()
	}
}
