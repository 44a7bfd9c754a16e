package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/investeai/internal/api"
	"github.com/newthinker/investeai/internal/app"
	"github.com/newthinker/investeai/internal/metrics"
	"github.com/newthinker/investeai/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchModel bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchModel, "watch-model", false, "mark results stale when the model file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	application, err := app.New(cfg, log, app.Options{Metrics: reg})
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}

	log.Info("starting InvesteAI server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("provider", cfg.Backtest.Provider),
		zap.String("model", application.ModelPath()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go application.RunJanitor(ctx, time.Minute)

	if watchModel {
		w, err := session.NewModelWatcher(application.Sessions(), application.ModelPath(), log.Named("watcher"))
		if err != nil {
			return fmt.Errorf("watching model: %w", err)
		}
		defer w.Close()
		go w.Run(ctx)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	// Create API server
	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		APIKey:       cfg.Server.APIKey,
		TemplatesDir: cfg.Server.TemplatesDir,
		MetricsPath:  metricsPath,
		SessionTTL:   cfg.Session.TTL,
		WriteTimeout: cfg.Backtest.Timeout + 30*time.Second,
	}, api.Dependencies{App: application, Metrics: reg}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down InvesteAI server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
