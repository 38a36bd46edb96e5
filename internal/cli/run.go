package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dugout-pulse/internal/app"
	"dugout-pulse/internal/model"
	"dugout-pulse/internal/window"
)

var runServe bool

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Run one aggregation pass and write the window feeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := getApp().RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		if summary.Skipped {
			fmt.Fprintln(cmd.OutOrStdout(), "skipped: another run holds the lock")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "run %s for %s: %d players, %d ok, %d insufficient, %d unavailable\n",
			summary.RunID,
			model.FormatDay(summary.RunDate),
			summary.Players,
			summary.Counts[window.StatusOK],
			summary.Counts[window.StatusInsufficient],
			summary.Counts[window.StatusUnavailable],
		)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run aggregation passes on the configured cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context(), app.RunOptions{Serve: runServe})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the window feeds over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}

func init() {
	runCmd.Flags().BoolVar(&runServe, "serve", false, "Also serve feeds and metrics over HTTP")
}
