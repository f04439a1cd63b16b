package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/bnema/cosmetic/internal/logging"
)

// LogSink writes reports to a zerolog logger.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink logging through the context logger.
func NewLogSink(ctx context.Context) *LogSink {
	return &LogSink{logger: logging.FromContext(ctx).With().Str("component", "telemetry").Logger()}
}

func (s *LogSink) LogCosmeticFilteringData(_ context.Context, report Report) error {
	if len(report.MatchedSelectors) == 0 {
		return ErrEmptyReport
	}
	s.logger.Info().
		Str("page_id", report.PageID).
		Str("frame_url", report.FrameURL).
		Str("hostname", report.FrameHostname).
		Strs("selectors", report.MatchedSelectors).
		Msg("cosmetic filters matched")
	return nil
}
