package config

import (
	"time"

	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
)

// Default configuration constants
const (
	defaultListenAddr     = "127.0.0.1:8377"
	defaultBackendTimeout = 5 * time.Second
)

// DefaultConfig returns the default configuration values.
func DefaultConfig() *Config {
	opts := cosmetic.DefaultOptions()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Engine: EngineConfig{
			FrameTimeout:          opts.FrameTimeout,
			CollapseDebounce:      opts.CollapseDebounce,
			BlockedSetTTL:         opts.BlockedSetTTL,
			SurveyorMissThreshold: opts.SurveyorMissThreshold,
			LoggerQueueMax:        opts.LoggerQueueMax,
			LoggerFrameBudget:     opts.LoggerFrameBudget,
		},
		Backend: BackendConfig{
			Mode:    BackendModeStatic,
			Listen:  defaultListenAddr,
			Timeout: defaultBackendTimeout,
		},
		Telemetry: TelemetryConfig{
			Enabled: false,
			Sink:    TelemetrySinkLog,
		},
	}
}
