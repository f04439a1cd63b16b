// Package cmd provides Cobra CLI commands for cosmetic.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/cosmetic/internal/cli"
)

var (
	app        *cli.App
	configFile string
	version    = "dev"
	rootCmd    = &cobra.Command{
		Use:   "cosmetic",
		Short: "Incremental cosmetic filtering engine",
		Long: `cosmetic hides page elements matched by declarative and procedural
hide rules, keeps doing so while the page changes, and collapses elements
whose resources were blocked.

Use 'cosmetic apply' to run the engine offline on a saved page, and
'cosmetic serve' to expose a rule file as a backend over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip initialization for commands that don't need app context
			switch cmd.Name() {
			case "help", "completion", "version", "schema":
				return nil
			}

			var err error
			app, err = cli.NewApp(configFile)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if app != nil {
				_ = app.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: XDG config dir)")
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cosmetic %s\n", version)
		},
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion sets the version string (called from main before Execute).
func SetVersion(v string) {
	version = v
}

// GetApp returns the initialized app (for use by subcommands).
func GetApp() *cli.App {
	return app
}
