// Package config provides configuration management for the cosmetic tools
// with Viper integration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/bnema/cosmetic/internal/filtering/cosmetic"
	"github.com/bnema/cosmetic/internal/logging"
)

// File permission constants
const (
	dirPerm  = 0755 // Standard directory permissions (rwxr-xr-x)
	filePerm = 0644 // Standard file permissions (rw-r--r--)
)

// Config represents the complete configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Backend   BackendConfig   `mapstructure:"backend" yaml:"backend"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// EngineConfig tunes the filtering engine's scheduling and heuristics.
type EngineConfig struct {
	FrameTimeout          time.Duration `mapstructure:"frame_timeout" yaml:"frame_timeout"`
	CollapseDebounce      time.Duration `mapstructure:"collapse_debounce" yaml:"collapse_debounce"`
	BlockedSetTTL         time.Duration `mapstructure:"blocked_set_ttl" yaml:"blocked_set_ttl"`
	SurveyorMissThreshold int           `mapstructure:"surveyor_miss_threshold" yaml:"surveyor_miss_threshold"`
	LoggerQueueMax        int           `mapstructure:"logger_queue_max" yaml:"logger_queue_max"`
	LoggerFrameBudget     time.Duration `mapstructure:"logger_frame_budget" yaml:"logger_frame_budget"`
}

// Options converts the section into engine options.
func (e EngineConfig) Options() cosmetic.Options {
	return cosmetic.Options{
		FrameTimeout:          e.FrameTimeout,
		CollapseDebounce:      e.CollapseDebounce,
		BlockedSetTTL:         e.BlockedSetTTL,
		SurveyorMissThreshold: e.SurveyorMissThreshold,
		LoggerQueueMax:        e.LoggerQueueMax,
		LoggerFrameBudget:     e.LoggerFrameBudget,
	}
}

// BackendMode selects where the engine gets its rules from.
type BackendMode string

const (
	BackendModeStatic BackendMode = "static"
	BackendModeHTTP   BackendMode = "http"
)

// BackendConfig holds backend configuration.
type BackendConfig struct {
	Mode BackendMode `mapstructure:"mode" yaml:"mode"`
	// RulesFile is the YAML rule file served by the static backend.
	RulesFile string `mapstructure:"rules_file" yaml:"rules_file"`
	// Listen is the address `cosmetic serve` binds.
	Listen string `mapstructure:"listen" yaml:"listen"`
	// URL is the base URL of a remote backend in http mode.
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TelemetrySink selects where matched-selector reports go.
type TelemetrySink string

const (
	TelemetrySinkLog    TelemetrySink = "log"
	TelemetrySinkSQLite TelemetrySink = "sqlite"
)

// TelemetryConfig holds telemetry configuration.
type TelemetryConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Sink    TelemetrySink `mapstructure:"sink" yaml:"sink"`
	// Path of the SQLite database. Empty means the XDG data directory.
	Path string `mapstructure:"path" yaml:"path"`
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config     *Config
	viper      *viper.Viper
	logger     zerolog.Logger
	configFile string
	mu         sync.RWMutex
	callbacks  []func(*Config)
	watching   bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfigFile reads path instead of searching the config directories.
func WithConfigFile(path string) Option {
	return func(m *Manager) { m.configFile = path }
}

// WithLogger sets the logger used for reload warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a new configuration manager.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		viper:     viper.New(),
		logger:    logging.NewFromEnv(),
		callbacks: make([]func(*Config), 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "config").Logger()

	v := m.viper
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		// Supports yaml, json, toml automatically
		v.SetConfigName("config")
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		v.AddConfigPath(configDir)
		v.AddConfigPath(".") // Current directory for development
	}

	v.SetEnvPrefix("COSMETIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short names kept in sync with logging.NewFromEnv.
	bindings := map[string]string{
		"logging.level":  "LOG_LEVEL",
		"logging.format": "LOG_FORMAT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "COSMETIC_"+env, "COSMETIC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", env, err)
		}
	}

	return m, nil
}

// Load loads the configuration from file and environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case m.configFile == "" && errors.As(err, &notFound):
			if err := m.createDefaultConfig(); err != nil {
				return fmt.Errorf("failed to create default config: %w", err)
			}
			if err := m.viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read default config: %w", err)
			}
		default:
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

func (m *Manager) decode() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.Telemetry.Path == "" && config.Telemetry.Sink == TelemetrySinkSQLite {
		dbPath, err := GetDatabaseFile()
		if err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
		config.Telemetry.Path = dbPath
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	configCopy := *m.config
	return &configCopy
}

// Watch starts watching the config file for changes and reloads automatically.
// A reload that fails validation keeps the previous configuration.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.reload(); err != nil {
			m.logger.Warn().Err(err).Str("file", e.Name).Msg("failed to reload config")
			return
		}

		m.mu.RLock()
		config := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		for _, callback := range callbacks {
			callback(config)
		}
	})
	m.viper.WatchConfig()

	m.watching = true
	return nil
}

// OnConfigChange registers a callback function to be called when config changes.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}

func (m *Manager) reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}
	config, err := m.decode()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)

	m.viper.SetDefault("engine.frame_timeout", defaults.Engine.FrameTimeout)
	m.viper.SetDefault("engine.collapse_debounce", defaults.Engine.CollapseDebounce)
	m.viper.SetDefault("engine.blocked_set_ttl", defaults.Engine.BlockedSetTTL)
	m.viper.SetDefault("engine.surveyor_miss_threshold", defaults.Engine.SurveyorMissThreshold)
	m.viper.SetDefault("engine.logger_queue_max", defaults.Engine.LoggerQueueMax)
	m.viper.SetDefault("engine.logger_frame_budget", defaults.Engine.LoggerFrameBudget)

	m.viper.SetDefault("backend.mode", string(defaults.Backend.Mode))
	m.viper.SetDefault("backend.rules_file", defaults.Backend.RulesFile)
	m.viper.SetDefault("backend.listen", defaults.Backend.Listen)
	m.viper.SetDefault("backend.url", defaults.Backend.URL)
	m.viper.SetDefault("backend.timeout", defaults.Backend.Timeout)

	m.viper.SetDefault("telemetry.enabled", defaults.Telemetry.Enabled)
	m.viper.SetDefault("telemetry.sink", string(defaults.Telemetry.Sink))
	m.viper.SetDefault("telemetry.path", defaults.Telemetry.Path)
}

// createDefaultConfig writes the defaults to the XDG config file.
func (m *Manager) createDefaultConfig() error {
	if err := EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configFile), dirPerm); err != nil {
		return err
	}

	data, err := yaml.Marshal(defaultFileValues(DefaultConfig()))
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configFile, data, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.logger.Info().Str("file", configFile).Msg("created default configuration file")
	return nil
}

// defaultFileValues renders durations as strings so the written file stays
// human-editable.
func defaultFileValues(c *Config) map[string]any {
	return map[string]any{
		"logging": map[string]any{
			"level":  c.Logging.Level,
			"format": c.Logging.Format,
		},
		"engine": map[string]any{
			"frame_timeout":           c.Engine.FrameTimeout.String(),
			"collapse_debounce":       c.Engine.CollapseDebounce.String(),
			"blocked_set_ttl":         c.Engine.BlockedSetTTL.String(),
			"surveyor_miss_threshold": c.Engine.SurveyorMissThreshold,
			"logger_queue_max":        c.Engine.LoggerQueueMax,
			"logger_frame_budget":     c.Engine.LoggerFrameBudget.String(),
		},
		"backend": map[string]any{
			"mode":    string(c.Backend.Mode),
			"listen":  c.Backend.Listen,
			"timeout": c.Backend.Timeout.String(),
		},
		"telemetry": map[string]any{
			"enabled": c.Telemetry.Enabled,
			"sink":    string(c.Telemetry.Sink),
		},
	}
}

// GetConfigFile returns the path to the configuration file being used.
func (m *Manager) GetConfigFile() string {
	return m.viper.ConfigFileUsed()
}
