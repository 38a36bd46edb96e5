package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send a sample movers digest to the configured Slack webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := getApp().SimulateAlert(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "sample digest sent")
		return nil
	},
}
