// Package cli wires configuration, backends and telemetry for the cosmetic
// commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/bnema/cosmetic/internal/backend"
	"github.com/bnema/cosmetic/internal/backend/httpapi"
	"github.com/bnema/cosmetic/internal/cli/styles"
	"github.com/bnema/cosmetic/internal/config"
	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/messaging"
	"github.com/bnema/cosmetic/internal/telemetry"
)

// ErrNoRules is returned when a static backend is needed but no rule file
// was given.
var ErrNoRules = errors.New("no rule file: pass --rules or set backend.rules_file")

// App holds CLI dependencies.
type App struct {
	Config  *config.Config
	Manager *config.Manager
	Theme   *styles.Theme
	Logger  zerolog.Logger

	ctx     context.Context
	closers []io.Closer
}

// NewApp loads the configuration (configFile may be empty) and builds the
// logger from it.
func NewApp(configFile string) (*App, error) {
	var opts []config.Option
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	mgr, err := config.NewManager(opts...)
	if err != nil {
		return nil, fmt.Errorf("create config manager: %w", err)
	}
	if err := mgr.Load(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()

	logger := logging.NewFromConfigValues(cfg.Logging.Level, cfg.Logging.Format)
	return &App{
		Config:  cfg,
		Manager: mgr,
		Theme:   styles.NewTheme(),
		Logger:  logger,
		ctx:     logging.WithContext(context.Background(), logger),
	}, nil
}

// Context returns a context carrying the app logger.
func (a *App) Context() context.Context { return a.ctx }

// Backend returns the configured backend. rulesFile overrides
// backend.rules_file and forces static mode.
func (a *App) Backend(ctx context.Context, rulesFile string) (messaging.Backend, error) {
	if rulesFile == "" && a.Config.Backend.Mode == config.BackendModeHTTP {
		a.Logger.Debug().Str(logging.FieldBackend, string(config.BackendModeHTTP)).Str(logging.FieldURL, a.Config.Backend.URL).Msg("using remote backend")
		hc := &http.Client{Timeout: a.Config.Backend.Timeout}
		return httpapi.NewClient(a.Config.Backend.URL, httpapi.WithHTTPClient(hc)), nil
	}
	return a.StaticBackend(logging.WithBackend(ctx, string(config.BackendModeStatic)), rulesFile)
}

// StaticBackend loads the rule file, defaulting to backend.rules_file.
func (a *App) StaticBackend(ctx context.Context, rulesFile string) (*backend.Static, error) {
	if rulesFile == "" {
		rulesFile = a.Config.Backend.RulesFile
	}
	if rulesFile == "" {
		return nil, ErrNoRules
	}
	return backend.LoadStatic(ctx, rulesFile)
}

// Sink returns the configured telemetry sink, or nil when telemetry is off.
// SQLite sinks are closed by Close.
func (a *App) Sink(ctx context.Context) (telemetry.Sink, error) {
	if !a.Config.Telemetry.Enabled {
		return nil, nil
	}
	switch a.Config.Telemetry.Sink {
	case config.TelemetrySinkSQLite:
		db, err := a.OpenTelemetry(ctx)
		if err != nil {
			return nil, err
		}
		return telemetry.Multi{telemetry.NewLogSink(ctx), db}, nil
	default:
		return telemetry.NewLogSink(ctx), nil
	}
}

// OpenTelemetry opens the telemetry database at telemetry.path.
func (a *App) OpenTelemetry(ctx context.Context) (*telemetry.SQLiteSink, error) {
	path := a.Config.Telemetry.Path
	if path == "" {
		var err error
		if path, err = config.GetDatabaseFile(); err != nil {
			return nil, fmt.Errorf("failed to get database path: %w", err)
		}
	}
	db, err := telemetry.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db)
	return db, nil
}

// Close releases what the app opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	return errors.Join(errs...)
}
