package cli

import (
	"github.com/spf13/cobra"

	"dugout-pulse/internal/app"
)

var (
	exportWindow  string
	exportDate    string
	exportMetric  string
	exportPNGPath string
	exportCSVPath string
	exportMaxBars int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a window feed as CSV and/or a PNG leaderboard chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := parseSelector(exportWindow, exportDate)
		if err != nil {
			return err
		}

		opts := app.ExportOptions{
			FeedSelector: sel,
			Metric:       exportMetric,
			PNGPath:      exportPNGPath,
			CSVPath:      exportCSVPath,
			MaxBars:      exportMaxBars,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportWindow, "window", "7d", "Window to export (7d, 30d, season)")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "Export the archived feed for this day (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportMetric, "metric", app.MetricOPS, "Chart metric: ops (hitters) or era (pitchers)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxBars, "max-bars", 0, "Maximum players to chart (defaults to config)")
}
