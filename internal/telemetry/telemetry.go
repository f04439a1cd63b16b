// Package telemetry records which cosmetic selectors actually matched page
// content. Sinks are fire-and-forget: filtering never depends on them.
package telemetry

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyReport indicates a report without matched selectors
var ErrEmptyReport = errors.New("report has no matched selectors")

// Report lists the selectors found matching in one frame.
type Report struct {
	PageID           string    `json:"pageID"`
	FrameURL         string    `json:"frameURL"`
	FrameHostname    string    `json:"frameHostname"`
	MatchedSelectors []string  `json:"matchedSelectors"`
	At               time.Time `json:"at"`
}

// Sink receives reports.
type Sink interface {
	LogCosmeticFilteringData(ctx context.Context, report Report) error
}

// Multi fans a report out to every sink and returns the first error.
type Multi []Sink

func (m Multi) LogCosmeticFilteringData(ctx context.Context, report Report) error {
	var first error
	for _, s := range m {
		if err := s.LogCosmeticFilteringData(ctx, report); err != nil && first == nil {
			first = err
		}
	}
	return first
}
