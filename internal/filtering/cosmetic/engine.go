package cosmetic

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/messaging"
	"github.com/bnema/cosmetic/internal/telemetry"
)

// State is the lifecycle of an Engine.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateDisabled
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDisabled:
		return "disabled"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Report summarizes what the engine did to a page.
type Report struct {
	PageID           string
	Marker           string
	State            State
	Suppressed       []*html.Node
	FilteredElements int
	Declarative      int
	Procedural       int
	NetSelectors     []string
	Rejected         []RejectedRule
	SurveyorStopped  bool
}

// Engine wires the cosmetic filtering components for one document.
type Engine struct {
	ctx    context.Context
	doc    *dom.Document
	client *messaging.Client
	sink   telemetry.Sink
	opts   Options
	logger zerolog.Logger
	pageID string
	state  State

	sheet     *UserStylesheet
	sup       *Suppressor
	watcher   *Watcher
	store     *RuleStore
	surveyor  *Surveyor
	collapser *Collapser
	cosmetic  *CosmeticLogger

	params   *messaging.ContentScriptParameters
	rejected []RejectedRule
}

// NewEngine creates an engine for doc. sink may be nil. Nothing happens
// until Start.
func NewEngine(ctx context.Context, doc *dom.Document, client *messaging.Client, sink telemetry.Sink, opts Options) *Engine {
	pageID := uuid.NewString()
	ctx = logging.WithPage(ctx, logging.NewPage(pageID, doc.URL()))
	return &Engine{
		ctx:    ctx,
		doc:    doc,
		client: client,
		sink:   sink,
		opts:   opts.withDefaults(),
		logger: logging.FromContext(ctx).With().Str("component", "engine").Logger(),
		pageID: pageID,
	}
}

// Start requests the page parameters and brings the engine up once they
// arrive. It must be called from the loop. The returned future resolves
// after the engine processed the parameters.
func (e *Engine) Start() *messaging.Future[*messaging.ContentScriptParameters] {
	e.state = StateStarting
	f := e.client.RetrieveContentScriptParameters(messaging.ContentScriptParametersRequest{
		PageURL:     e.doc.URL(),
		LocationURL: e.doc.URL(),
	})
	f.Then(e.onParameters)
	return f
}

func (e *Engine) onParameters(params *messaging.ContentScriptParameters) {
	if e.state != StateStarting {
		return
	}
	if params == nil || !params.Ready {
		e.state = StateDisabled
		e.logger.Debug().Msg("filtering not ready for page, engine disabled")
		return
	}
	e.params = params

	e.sheet = NewUserStylesheet(e.doc)
	e.sup = NewSuppressor(e.ctx, e.doc, e.sheet, e.opts)
	e.watcher = NewWatcher(e.ctx, e.doc, e.opts)

	if !params.NoCosmeticFiltering {
		e.store = NewRuleStore(e.ctx, e.doc, e.sup, e.opts)
		e.store.AddDeclarativeRule(params.DeclarativeFilters, hideDeclaration, RuleOptions{})
		e.store.AddDeclarativeRule(params.HighGenericHideSimple, hideDeclaration, RuleOptions{Lazy: true, Type: TypeSimple})
		e.store.AddDeclarativeRule(params.HighGenericHideComplex, hideDeclaration, RuleOptions{Lazy: true, Type: TypeComplex})
		e.rejected = e.store.AddProceduralRules(params.ProceduralFilters)
		e.store.Commit(false)
		e.watcher.AddListener(e.store)

		if !params.NoGenericCosmeticFiltering && !params.NoDOMSurveying {
			e.surveyor = NewSurveyor(e.ctx, e.doc, e.client, e.store, e.watcher, e.opts)
		}
		if e.sink != nil && params.LoggerEnabled {
			e.cosmetic = NewCosmeticLogger(e.ctx, e.doc, e.store, e.sink, e.opts)
			e.watcher.AddListener(e.cosmetic)
		}
	}

	e.collapser = NewCollapser(e.ctx, e.doc, e.client, e.sup, e.opts)
	e.watcher.AddListener(e.collapser)

	e.injectNetHide(params)
	e.injectScripts(params.Scripts)

	e.watcher.Start()
	e.state = StateRunning
	e.logger.Debug().
		Int("declarative", len(params.DeclarativeFilters)).
		Int("procedural", len(params.ProceduralFilters)).
		Int("rejected", len(e.rejected)).
		Msg("engine running")
}

func (e *Engine) injectionParent() *html.Node {
	if head := e.doc.Head(); head != nil {
		return head
	}
	return e.doc.DocumentElement()
}

func (e *Engine) injectNetHide(params *messaging.ContentScriptParameters) {
	parent := e.injectionParent()
	if parent == nil || len(params.NetHide) == 0 {
		return
	}
	text := strings.Join(params.NetHide, ",\n")
	if params.CollapseBlocked {
		text += "\n{ display:none !important; }"
	} else {
		text += "\n{ visibility:hidden !important; }"
	}
	style := e.doc.CreateElement("style")
	style.Attr = append(style.Attr, html.Attribute{Key: "type", Val: "text/css"})
	_ = e.doc.AppendChild(style, e.doc.CreateTextNode(text))
	_ = e.doc.AppendChild(parent, style)
}

func (e *Engine) injectScripts(scripts string) {
	parent := e.injectionParent()
	if parent == nil || strings.TrimSpace(scripts) == "" {
		return
	}
	script := e.doc.CreateElement("script")
	_ = e.doc.AppendChild(script, e.doc.CreateTextNode(scripts))
	_ = e.doc.AppendChild(parent, script)
}

// Toggle turns cosmetic filtering off or back on for the page.
func (e *Engine) Toggle(enabled bool) error {
	switch {
	case e.state == StateClosed:
		return ErrEngineClosed
	case e.state != StateRunning || e.store == nil:
		return ErrEngineDisabled
	}
	e.store.Toggle(enabled)
	return nil
}

// Shutdown stops every component. No callback stays scheduled afterwards.
func (e *Engine) Shutdown() {
	if e.state == StateClosed {
		return
	}
	e.state = StateClosed
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.surveyor != nil {
		e.surveyor.Shutdown()
	}
	if e.collapser != nil {
		e.collapser.Shutdown()
	}
	if e.cosmetic != nil {
		e.cosmetic.Close()
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.sup != nil {
		e.sup.Close()
	}
	e.logger.Debug().Msg("engine shut down")
}

// State returns the lifecycle state.
func (e *Engine) State() State { return e.state }

// PageID identifies this page session.
func (e *Engine) PageID() string { return e.pageID }

// Parameters returns the page parameters, nil before they arrived.
func (e *Engine) Parameters() *messaging.ContentScriptParameters { return e.params }

func (e *Engine) Suppressor() *Suppressor         { return e.sup }
func (e *Engine) Watcher() *Watcher               { return e.watcher }
func (e *Engine) RuleStore() *RuleStore           { return e.store }
func (e *Engine) Surveyor() *Surveyor             { return e.surveyor }
func (e *Engine) Collapser() *Collapser           { return e.collapser }
func (e *Engine) CosmeticLogger() *CosmeticLogger { return e.cosmetic }

// Report summarizes the current state of the page.
func (e *Engine) Report() Report {
	r := Report{
		PageID:   e.pageID,
		State:    e.state,
		Rejected: append([]RejectedRule(nil), e.rejected...),
	}
	if e.sup != nil {
		r.Marker = e.sup.Marker()
		r.Suppressed = e.sup.Suppressed()
	}
	if e.store != nil {
		r.FilteredElements = e.store.FilteredElementCount()
		r.Declarative = len(e.store.AllDeclarativeSelectors())
		r.Procedural = len(e.store.AllProceduralSelectors())
	}
	if e.collapser != nil {
		r.NetSelectors = e.collapser.Selectors()
	}
	if e.surveyor != nil {
		r.SurveyorStopped = e.surveyor.Stopped()
	}
	return r
}
