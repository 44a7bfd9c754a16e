package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/newthinker/investeai/internal/config"
	"github.com/newthinker/investeai/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "investeai",
	Short: "InvesteAI - Deep Q-Learning backtest dashboard",
	Long: `InvesteAI runs the backtest of a pretrained Deep Q-Learning trading model
and shows its equity curve, trade statistics and buy/sell operations in a web
dashboard, a JSON API, a terminal view or a one-shot report.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Secrets usually come from .env during development
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the config file, or the defaults when
// no file was given, and builds the process logger from it.
func loadConfig() (*config.Config, *zap.Logger, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log, err := logger.Build(logger.Options{
		Development: debug,
		Level:       level,
		Encoding:    cfg.Log.Encoding,
		Service:     "investeai",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}

	return cfg, log, nil
}
