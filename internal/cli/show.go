package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dugout-pulse/internal/app"
)

var (
	showWindow string
	showDate   string
	showRuns   bool
	showLimit  int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display a window feed or recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit < 0 {
			return fmt.Errorf("--limit cannot be negative")
		}

		opts := app.ShowOptions{Runs: showRuns, Limit: showLimit}
		if !showRuns {
			sel, err := parseSelector(showWindow, showDate)
			if err != nil {
				return err
			}
			opts.FeedSelector = sel
		}

		return getApp().Show(cmd.Context(), cmd.OutOrStdout(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showWindow, "window", "7d", "Window to display (7d, 30d, season)")
	showCmd.Flags().StringVar(&showDate, "date", "", "Show the archived feed for this day (YYYY-MM-DD)")
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "List recent archived runs instead")
	showCmd.Flags().IntVar(&showLimit, "limit", 0, "Maximum rows to display (0 for all)")
}
