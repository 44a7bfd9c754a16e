package main

import (
	"fmt"

	"github.com/newthinker/investeai/internal/app"
	"github.com/newthinker/investeai/internal/tui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse backtest results in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		// Log lines would tear the alternate screen
		appLog := zap.NewNop()
		if debug {
			appLog = log
		}

		application, err := app.New(cfg, appLog, app.Options{})
		if err != nil {
			return fmt.Errorf("creating app: %w", err)
		}
		return tui.Run(cmd.Context(), application.Acquirer())
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
