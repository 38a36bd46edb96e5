package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dugout-pulse/internal/app"
	"dugout-pulse/internal/model"
)

var (
	backfillFrom string
	backfillTo   string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Recompute and archive Pro windows for past days",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backfillFrom == "" || backfillTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := model.ParseDay(backfillFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}

		to, err := model.ParseDay(backfillTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		if to.Before(from) {
			return fmt.Errorf("--from must not be after --to")
		}

		return getApp().Backfill(cmd.Context(), app.BackfillOptions{From: from, To: to})
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillFrom, "from", "", "First day to recompute (YYYY-MM-DD, inclusive)")
	backfillCmd.Flags().StringVar(&backfillTo, "to", "", "Last day to recompute (YYYY-MM-DD, inclusive)")
}
