// internal/api/server.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apihandler "github.com/newthinker/investeai/internal/api/handler/api"
	"github.com/newthinker/investeai/internal/api/handler/web"
	"github.com/newthinker/investeai/internal/api/middleware"
	"github.com/newthinker/investeai/internal/api/response"
	"github.com/newthinker/investeai/internal/app"
	"github.com/newthinker/investeai/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server represents the HTTP server for the dashboard
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	deps       Dependencies
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	APIKey       string        // empty disables /api/v1 authentication
	TemplatesDir string        // empty uses embedded templates
	MetricsPath  string        // empty disables the metrics endpoint
	SessionTTL   time.Duration // lifetime of the session cookie
	WriteTimeout time.Duration // must outlast a backtest run
}

// Dependencies holds the services the handlers use.
type Dependencies struct {
	App     *app.App
	Metrics *metrics.Registry // optional
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}

	mux := http.NewServeMux()

	s := &Server{
		logger: logger,
		mux:    mux,
		deps:   deps,
	}

	// Set up routes
	if err := s.setupRoutes(cfg); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	var handler http.Handler = mux
	if deps.Metrics != nil {
		handler = metrics.HTTPMiddleware(deps.Metrics)(handler)
	}
	handler = metrics.LoggingMiddleware(logger.Named("http"))(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(cfg Config) error {
	sessions := middleware.Session(cfg.SessionTTL)

	// Web UI routes
	webHandler, err := web.NewHandler(cfg.TemplatesDir)
	if err != nil {
		return fmt.Errorf("creating web handler: %w", err)
	}
	if s.deps.App != nil {
		webHandler.SetService(s.deps.App)
	}

	s.mux.Handle("GET /{$}", sessions(http.HandlerFunc(webHandler.Dashboard)))
	s.mux.Handle("POST /run", sessions(http.HandlerFunc(webHandler.Run)))

	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if cfg.MetricsPath != "" && s.deps.Metrics != nil {
		s.mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{}))
	}

	// JSON API
	if s.deps.App != nil {
		auth := middleware.APIKeyAuth(cfg.APIKey)
		api := func(h http.HandlerFunc) http.Handler {
			return auth(sessions(h))
		}

		results := apihandler.NewResultsHandler(s.deps.App)
		s.mux.Handle("GET /api/v1/results", api(results.Get))
		s.mux.Handle("POST /api/v1/results/run", api(results.Run))
		s.mux.Handle("GET /api/v1/results/events", api(results.Events))
		s.mux.Handle("GET /api/v1/results/insight", api(results.Insight))
	}

	return nil
}

// Handler returns the server's root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if s.deps.App != nil {
		status["sessions"] = s.deps.App.Sessions().Len()
		status["insight"] = s.deps.App.InsightEnabled()
	}
	response.JSON(w, http.StatusOK, status)
}
