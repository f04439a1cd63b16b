package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/cosmetic/internal/backend"
	"github.com/bnema/cosmetic/internal/backend/httpapi"
	"github.com/bnema/cosmetic/internal/config"
)

var (
	serveRules  string
	serveListen string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a rule file as a backend over HTTP",
	Long: `Load a rule file into the static backend and expose it over JSON/HTTP.

The rule file is reloaded when the config file changes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveRules, "rules", "r", "", "rule file (default: backend.rules_file)")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (default: backend.listen)")
}

func runServe(_ *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	ctx, stop := signal.NotifyContext(app.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	static, err := app.StaticBackend(ctx, serveRules)
	if err != nil {
		return err
	}
	current := backend.NewSwappable(static)

	if err := app.Manager.Watch(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	app.Manager.OnConfigChange(func(cfg *config.Config) {
		reloadRules(ctx, current, cfg)
	})

	addr := serveListen
	if addr == "" {
		addr = app.Config.Backend.Listen
	}
	return httpapi.NewServer(ctx, current).ListenAndServe(ctx, addr)
}

func reloadRules(ctx context.Context, current *backend.Swappable, cfg *config.Config) {
	app := GetApp()
	path := serveRules
	if path == "" {
		path = cfg.Backend.RulesFile
	}
	static, err := backend.LoadStatic(ctx, path)
	if err != nil {
		app.Logger.Warn().Err(err).Str("file", path).Msg("rule reload failed, keeping previous rules")
		return
	}
	current.Swap(static)
	app.Logger.Info().Str("file", path).Msg("rules reloaded")
}
