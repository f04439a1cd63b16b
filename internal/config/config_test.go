package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
)

func TestDefaultsMatchEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, validateConfig(cfg))

	if diff := cmp.Diff(cosmetic.DefaultOptions(), cfg.Engine.Options()); diff != "" {
		t.Errorf("engine options mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultsLoadThroughViper(t *testing.T) {
	mgr := &Manager{viper: viper.New(), logger: zerolog.Nop()}
	mgr.setDefaults()

	cfg, err := mgr.decode()
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestValidationCollectsEveryError(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(cfg *Config)
		errorField string
	}{
		{"frame timeout", func(c *Config) { c.Engine.FrameTimeout = 0 }, "engine.frame_timeout"},
		{"negative debounce", func(c *Config) { c.Engine.CollapseDebounce = -time.Millisecond }, "engine.collapse_debounce"},
		{"ttl", func(c *Config) { c.Engine.BlockedSetTTL = 0 }, "engine.blocked_set_ttl"},
		{"miss threshold", func(c *Config) { c.Engine.SurveyorMissThreshold = 0 }, "engine.surveyor_miss_threshold"},
		{"queue", func(c *Config) { c.Engine.LoggerQueueMax = 0 }, "engine.logger_queue_max"},
		{"budget", func(c *Config) { c.Engine.LoggerFrameBudget = 0 }, "engine.logger_frame_budget"},
		{"mode", func(c *Config) { c.Backend.Mode = "grpc" }, "backend.mode"},
		{"http without url", func(c *Config) { c.Backend.Mode = BackendModeHTTP }, "backend.url"},
		{"sink", func(c *Config) { c.Telemetry.Sink = "kafka" }, "telemetry.sink"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := validateConfig(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorField)
		})
	}

	cfg := DefaultConfig()
	cfg.Engine.FrameTimeout = 0
	cfg.Telemetry.Sink = "kafka"
	err := validateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.frame_timeout")
	assert.Contains(t, err.Error(), "telemetry.sink")
}

func TestLoadFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cosmetic.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  collapse_debounce: 50ms
  surveyor_miss_threshold: 10
backend:
  mode: http
  url: http://127.0.0.1:9000
telemetry:
  enabled: true
  sink: sqlite
  path: `+filepath.Join(dir, "t.sqlite")+`
`), filePerm))
	t.Setenv("COSMETIC_LOG_LEVEL", "debug")
	t.Setenv("COSMETIC_BACKEND_TIMEOUT", "2s")

	mgr, err := NewManager(WithConfigFile(path), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, mgr.Load())

	cfg := mgr.Get()
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.CollapseDebounce)
	assert.Equal(t, 10, cfg.Engine.SurveyorMissThreshold)
	assert.Equal(t, cosmetic.DefaultBlockedSetTTL, cfg.Engine.BlockedSetTTL)
	assert.Equal(t, BackendModeHTTP, cfg.Backend.Mode)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.Backend.URL)
	assert.Equal(t, 2*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, filepath.Join(dir, "t.sqlite"), cfg.Telemetry.Path)
	assert.Equal(t, path, mgr.GetConfigFile())
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cosmetic.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  mode: carrier-pigeon\n"), filePerm))

	mgr, err := NewManager(WithConfigFile(path), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	err = mgr.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.mode")
	assert.Equal(t, DefaultConfig(), mgr.Get(), "Get falls back to defaults before a successful load")
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ENV", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(home))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	mgr, err := NewManager(WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	require.NoError(t, mgr.Load())

	want := filepath.Join(home, "config", appName, "config.yaml")
	assert.FileExists(t, want)
	assert.Equal(t, want, mgr.GetConfigFile())
	assert.Equal(t, cosmetic.DefaultCollapseDebounce, mgr.Get().Engine.CollapseDebounce)
}

func TestSchemaUsesFileKeys(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "Cosmetic Filtering Configuration", doc["title"])
	assert.Contains(t, buf.String(), `"surveyor_miss_threshold"`)
	assert.Contains(t, buf.String(), `"rules_file"`)
}
