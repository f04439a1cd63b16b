// Package cosmetic is the incremental cosmetic filtering engine: it watches a
// live document, matches hide rules against it and applies or reverts visual
// suppression.
package cosmetic

import (
	"time"

	"github.com/bnema/cosmetic/internal/mainloop"
)

// Options tunes timing and heuristics. Start from DefaultOptions; apart from
// CollapseDebounce, a non-positive field selects its default.
type Options struct {
	// FrameTimeout is the fallback delay when no animation frame arrives.
	FrameTimeout time.Duration
	// CollapseDebounce batches resource collapse candidates. Zero sends every
	// batch immediately.
	CollapseDebounce time.Duration
	// BlockedSetTTL bounds how long a blocked-resource set is reused.
	BlockedSetTTL time.Duration
	// SurveyorMissThreshold is how many consecutive fruitless lookups the
	// surveyor tolerates before shutting itself down.
	SurveyorMissThreshold int
	// LoggerQueueMax caps the telemetry job queue.
	LoggerQueueMax int
	// LoggerFrameBudget bounds the telemetry work done per frame.
	LoggerFrameBudget time.Duration
}

const (
	DefaultCollapseDebounce      = 20 * time.Millisecond
	DefaultBlockedSetTTL         = 30 * time.Second
	DefaultSurveyorMissThreshold = 255
	DefaultLoggerQueueMax        = 300
	DefaultLoggerFrameBudget     = 10 * time.Millisecond
)

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		FrameTimeout:          mainloop.DefaultFrameTimeout,
		CollapseDebounce:      DefaultCollapseDebounce,
		BlockedSetTTL:         DefaultBlockedSetTTL,
		SurveyorMissThreshold: DefaultSurveyorMissThreshold,
		LoggerQueueMax:        DefaultLoggerQueueMax,
		LoggerFrameBudget:     DefaultLoggerFrameBudget,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.FrameTimeout <= 0 {
		o.FrameTimeout = d.FrameTimeout
	}
	if o.CollapseDebounce < 0 {
		o.CollapseDebounce = 0
	}
	if o.BlockedSetTTL <= 0 {
		o.BlockedSetTTL = d.BlockedSetTTL
	}
	if o.SurveyorMissThreshold <= 0 {
		o.SurveyorMissThreshold = d.SurveyorMissThreshold
	}
	if o.LoggerQueueMax <= 0 {
		o.LoggerQueueMax = d.LoggerQueueMax
	}
	if o.LoggerFrameBudget <= 0 {
		o.LoggerFrameBudget = d.LoggerFrameBudget
	}
	return o
}
