package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/cosmetic/internal/cli"
	"github.com/bnema/cosmetic/internal/cli/styles"
)

var (
	applyRules    string
	applyURL      string
	applyOutput   string
	applyDuration time.Duration
	applyRealTime bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <page.html>",
	Short: "Run the engine offline on a saved page",
	Long: `Parse a saved HTML page, run the cosmetic filtering engine on it against
the configured backend (or --rules), and print what was hidden.

Examples:
  cosmetic apply page.html --rules rules.yaml
  cosmetic apply page.html --rules rules.yaml --url https://news.test/ -o filtered.html
  cosmetic apply page.html --realtime --duration 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVarP(&applyRules, "rules", "r", "", "rule file for the static backend")
	applyCmd.Flags().StringVar(&applyURL, "url", "", "URL the page was loaded from (default: file URL of the page)")
	applyCmd.Flags().StringVarP(&applyOutput, "output", "o", "", "write the filtered HTML to this file")
	applyCmd.Flags().DurationVar(&applyDuration, "duration", cli.DefaultApplyDuration, "time to let the engine run")
	applyCmd.Flags().BoolVar(&applyRealTime, "realtime", false, "run on a wall-clock loop with concurrent backend calls")
}

func runApply(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}
	ctx := app.Context()
	renderer := styles.NewReportRenderer(app.Theme)

	markup, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read page: %w", err)
	}
	pageURL := applyURL
	if pageURL == "" {
		pageURL = "file://" + args[0]
	}

	b, err := app.Backend(ctx, applyRules)
	if err != nil {
		return err
	}
	sink, err := app.Sink(ctx)
	if err != nil {
		return err
	}

	res, err := cli.Apply(ctx, b, sink, cli.ApplyInput{
		Markup:   string(markup),
		URL:      pageURL,
		Options:  app.Config.Engine.Options(),
		Duration: applyDuration,
		RealTime: applyRealTime,
	})
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), renderer.RenderError(err))
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderer.RenderApply(res.Summary()))

	if applyOutput != "" {
		f, err := os.Create(applyOutput)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		if err := res.WriteHTML(f); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	return nil
}
