package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/net/html"

	"github.com/bnema/cosmetic/internal/cli/styles"
	"github.com/bnema/cosmetic/internal/dom"
	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
	"github.com/bnema/cosmetic/internal/mainloop"
	"github.com/bnema/cosmetic/internal/messaging"
	"github.com/bnema/cosmetic/internal/telemetry"
)

// Simulated run defaults for Apply.
const (
	DefaultApplyDuration = 2 * time.Second
	DefaultApplyStep     = 16 * time.Millisecond
)

// ApplyInput describes one offline run of the engine.
type ApplyInput struct {
	Markup  string
	URL     string
	Options cosmetic.Options
	// Duration is how much loop time is simulated. Timers due within it
	// fire; later ones are dropped at shutdown.
	Duration time.Duration
	Step     time.Duration
	// Mutate, when set, runs on the loop once the engine is up, to simulate
	// page scripts changing the document.
	Mutate func(doc *dom.Document) error
	// RealTime runs the engine on a wall-clock loop for Duration, with
	// backend calls on their own goroutines. Step is the frame interval.
	RealTime bool
}

// ApplyResult is the engine state at the end of a run.
type ApplyResult struct {
	Report cosmetic.Report
	Doc    *dom.Document
}

// Apply parses the page, runs the engine on a manual loop against b, then
// shuts it down. Backend calls happen inline, so b may block.
func Apply(ctx context.Context, b messaging.Backend, sink telemetry.Sink, in ApplyInput) (*ApplyResult, error) {
	if in.Duration <= 0 {
		in.Duration = DefaultApplyDuration
	}
	if in.Step <= 0 {
		in.Step = DefaultApplyStep
	}
	if in.RealTime {
		return applyRealTime(ctx, b, sink, in)
	}

	sched := mainloop.NewManual()
	doc, err := dom.ParseString(in.Markup, sched, dom.WithURL(in.URL))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	client := messaging.NewClient(ctx, b, sched, messaging.WithInline())
	defer client.Close()

	engine := cosmetic.NewEngine(ctx, doc, client, sink, in.Options)
	defer engine.Shutdown()

	var mutateErr error
	engine.Start().Then(func(*messaging.ContentScriptParameters) {
		if in.Mutate != nil && engine.State() == cosmetic.StateRunning {
			mutateErr = in.Mutate(doc)
		}
	})

	for elapsed := time.Duration(0); elapsed < in.Duration; elapsed += in.Step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sched.Frame()
		sched.Advance(in.Step)
	}
	sched.Frame()

	if mutateErr != nil {
		return nil, fmt.Errorf("mutate page: %w", mutateErr)
	}
	return &ApplyResult{Report: engine.Report(), Doc: doc}, nil
}

// applyRealTime runs the engine on a mainloop.Loop until Duration elapses.
// The document and the engine are only touched from the loop, and read
// back here once Run has returned.
func applyRealTime(ctx context.Context, b messaging.Backend, sink telemetry.Sink, in ApplyInput) (*ApplyResult, error) {
	loop := mainloop.NewLoop(in.Step)
	doc, err := dom.ParseString(in.Markup, loop, dom.WithURL(in.URL))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	client := messaging.NewClient(ctx, b, loop)
	defer client.Wait()
	defer client.Close()

	var (
		engine    *cosmetic.Engine
		mutateErr error
	)
	loop.Post(func() {
		engine = cosmetic.NewEngine(ctx, doc, client, sink, in.Options)
		engine.Start().Then(func(*messaging.ContentScriptParameters) {
			if in.Mutate != nil && engine.State() == cosmetic.StateRunning {
				mutateErr = in.Mutate(doc)
			}
		})
	})

	runCtx, cancel := context.WithTimeout(ctx, in.Duration)
	defer cancel()
	_ = loop.Run(runCtx)
	if engine != nil {
		defer engine.Shutdown()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, fmt.Errorf("engine never started within %s", in.Duration)
	}

	if mutateErr != nil {
		return nil, fmt.Errorf("mutate page: %w", mutateErr)
	}
	return &ApplyResult{Report: engine.Report(), Doc: doc}, nil
}

// Summary converts the result for rendering.
func (r *ApplyResult) Summary() styles.ApplySummary {
	s := styles.ApplySummary{
		URL:          r.Doc.URL(),
		State:        r.Report.State.String(),
		Marker:       r.Report.Marker,
		NetSelectors: r.Report.NetSelectors,
		Stopped:      r.Report.SurveyorStopped,
	}
	for _, n := range r.Report.Suppressed {
		s.Suppressed = append(s.Suppressed, dom.Describe(n))
	}
	for _, rej := range r.Report.Rejected {
		s.Rejected = append(s.Rejected, styles.RejectedLine{Rule: rej.Raw, Reason: rej.Err.Error()})
	}
	return s
}

// WriteHTML serializes the filtered document.
func (r *ApplyResult) WriteHTML(w io.Writer) error {
	return html.Render(w, r.Doc.Root())
}
