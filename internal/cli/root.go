package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dugout-pulse/internal/app"
	"dugout-pulse/internal/config"
	"dugout-pulse/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
	closeLog  = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "pulse",
	Short:         "Roll player game logs into 7-day, 30-day and season form feeds",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil || cmd.Name() == versionCmd.Name() {
			return nil
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, closeFn, err := logging.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		closeLog = closeFn
		appHandle = app.NewApp(cfg, logger)
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	_ = closeLog()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(windowsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
