package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/cosmetic/internal/cli/styles"
)

var hitsCmd = &cobra.Command{
	Use:   "hits <hostname>",
	Short: "Show which selectors matched on a host",
	Long:  `Read the telemetry database and list selectors by how many reports matched them.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("app not initialized")
		}
		ctx := app.Context()
		renderer := styles.NewReportRenderer(app.Theme)

		db, err := app.OpenTelemetry(ctx)
		if err != nil {
			return err
		}
		hits, err := db.Hits(ctx, args[0])
		if err != nil {
			return err
		}
		lines := make([]styles.HitLine, 0, len(hits))
		for _, h := range hits {
			lines = append(lines, styles.HitLine{Selector: h.Selector, Hits: h.Hits})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderer.RenderHits(args[0], lines))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hitsCmd)
}
