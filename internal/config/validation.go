package config

import (
	"fmt"
	"strings"
)

// validateConfig checks every field and reports all problems at once.
func validateConfig(config *Config) error {
	var validationErrors []string

	switch strings.ToLower(config.Logging.Format) {
	case "", "console", "pretty", "text", "json":
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.format must be one of: console, json (got: %s)", config.Logging.Format))
	}

	e := config.Engine
	if e.FrameTimeout <= 0 {
		validationErrors = append(validationErrors, "engine.frame_timeout must be positive")
	}
	if e.CollapseDebounce < 0 {
		validationErrors = append(validationErrors, "engine.collapse_debounce must be non-negative")
	}
	if e.BlockedSetTTL <= 0 {
		validationErrors = append(validationErrors, "engine.blocked_set_ttl must be positive")
	}
	if e.SurveyorMissThreshold < 1 {
		validationErrors = append(validationErrors, "engine.surveyor_miss_threshold must be at least 1")
	}
	if e.LoggerQueueMax < 1 {
		validationErrors = append(validationErrors, "engine.logger_queue_max must be at least 1")
	}
	if e.LoggerFrameBudget <= 0 {
		validationErrors = append(validationErrors, "engine.logger_frame_budget must be positive")
	}

	switch config.Backend.Mode {
	case BackendModeStatic:
	case BackendModeHTTP:
		if config.Backend.URL == "" {
			validationErrors = append(validationErrors, "backend.url is required when backend.mode is http")
		}
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("backend.mode must be one of: static, http (got: %s)", config.Backend.Mode))
	}
	if config.Backend.Timeout <= 0 {
		validationErrors = append(validationErrors, "backend.timeout must be positive")
	}

	switch config.Telemetry.Sink {
	case TelemetrySinkLog, TelemetrySinkSQLite:
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("telemetry.sink must be one of: log, sqlite (got: %s)", config.Telemetry.Sink))
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(validationErrors, "\n  - "))
	}
	return nil
}
