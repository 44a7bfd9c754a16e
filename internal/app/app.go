package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/backtest/provider/python"
	"github.com/newthinker/investeai/internal/backtest/provider/remote"
	"github.com/newthinker/investeai/internal/config"
	"github.com/newthinker/investeai/internal/core"
	"github.com/newthinker/investeai/internal/insight"
	"github.com/newthinker/investeai/internal/metrics"
	"github.com/newthinker/investeai/internal/session"
	"github.com/newthinker/investeai/internal/storage/model"
	"go.uber.org/zap"
)

// App ties acquisition, the session cache and optional commentary
// together for the HTTP and terminal front ends.
type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	acquirer   *backtest.Acquirer
	sessions   *session.Store
	locator    *model.Locator
	summarizer *insight.Summarizer
	metrics    *metrics.Registry
}

// Options carries optional collaborators. Zero values are built from the
// config or left disabled.
type Options struct {
	Provider   backtest.Provider // overrides cfg.Backtest.Provider
	Locator    backtest.ModelLocator
	Completer  insight.Completer
	Metrics    *metrics.Registry
	Rand       *rand.Rand
	NoProvider bool // run without an entry point even if one is configured
}

// New wires an App from configuration.
func New(cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
		sessions: session.NewStore(session.Options{
			MaxSize:       cfg.Session.MaxSessions,
			TTL:           cfg.Session.TTL,
			RunsPerMinute: cfg.Session.RunsPerMinute,
			RunBurst:      cfg.Session.RunBurst,
		}),
	}

	provider := opts.Provider
	if provider == nil && !opts.NoProvider {
		var err error
		if provider, err = NewProvider(cfg.Backtest, logger); err != nil {
			return nil, err
		}
	}

	locator := opts.Locator
	if locator == nil {
		l, err := NewLocator(cfg, logger)
		if err != nil {
			return nil, err
		}
		a.locator = l
		locator = l
	}

	completer := opts.Completer
	if completer == nil && cfg.LLM.Provider != "" {
		var err error
		if completer, err = insight.NewCompleter(cfg.LLM); err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	if completer != nil {
		var rec insight.Recorder
		if opts.Metrics != nil {
			rec = opts.Metrics
		}
		a.summarizer = insight.NewSummarizer(completer, rec, logger.Named("insight"))
	}

	var recorder backtest.Recorder
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}
	a.acquirer = backtest.NewAcquirer(backtest.Options{
		Provider:  provider,
		Locator:   locator,
		ModelFile: cfg.Backtest.ModelFile,
		Timeout:   cfg.Backtest.Timeout,
		Recorder:  recorder,
		Logger:    logger.Named("acquire"),
		Rand:      opts.Rand,
	})

	return a, nil
}

// NewProvider builds the configured backtest entry point. An empty
// provider name yields nil, which acquisition reports as unavailable.
func NewProvider(cfg config.BacktestConfig, logger *zap.Logger) (backtest.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "":
		return nil, nil
	case "python":
		p, err := python.New(python.Config{
			Bin:      cfg.Python.Bin,
			WorkDir:  cfg.Python.WorkDir,
			Module:   cfg.Python.Module,
			Function: cfg.Python.Function,
		}, logger.Named("python"))
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		return p, nil
	case "remote":
		p, err := remote.New(remote.Config{
			URL:             cfg.Remote.URL,
			MaxRetryElapsed: cfg.Remote.MaxRetryElapsed,
		}, logger.Named("remote"))
		if err != nil {
			return nil, core.WrapError(core.ErrConfigInvalid, err)
		}
		return p, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown backtest provider %q", cfg.Provider))
	}
}

// NewModelStore builds the configured model store. The local store lives
// in the model directory.
func NewModelStore(cfg *config.Config) (model.Store, error) {
	switch cfg.Models.Type {
	case "", "localfs":
		dir, err := modelDir(cfg)
		if err != nil {
			return nil, err
		}
		return model.NewLocalFS(dir)
	case "s3":
		s3 := cfg.Models.S3
		return model.NewS3(model.S3Config{
			Bucket:    s3.Bucket,
			Endpoint:  s3.Endpoint,
			Region:    s3.Region,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Prefix:    s3.Prefix,
		})
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown models type %q", cfg.Models.Type))
	}
}

// NewLocator builds a locator over the model directory, backed by S3 when
// models are stored there.
func NewLocator(cfg *config.Config, logger *zap.Logger) (*model.Locator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir, err := modelDir(cfg)
	if err != nil {
		return nil, err
	}
	var remoteStore model.Store
	if cfg.Models.Type == "s3" {
		if remoteStore, err = NewModelStore(cfg); err != nil {
			return nil, err
		}
	}
	return model.NewLocator(dir, remoteStore, logger.Named("models"))
}

func modelDir(cfg *config.Config) (string, error) {
	if cfg.Backtest.ModelDir != "" {
		return cfg.Backtest.ModelDir, nil
	}
	return model.ExecutableDir()
}

// Acquirer returns the acquisition pipeline.
func (a *App) Acquirer() *backtest.Acquirer {
	return a.acquirer
}

// Sessions returns the session cache.
func (a *App) Sessions() *session.Store {
	return a.sessions
}

// ModelPath returns where the model file is expected locally, or "" when
// a custom locator is in use.
func (a *App) ModelPath() string {
	if a.locator == nil {
		return ""
	}
	return filepath.Join(a.locator.Dir(), filepath.FromSlash(a.cfg.Backtest.ModelFile))
}

// InsightEnabled reports whether an LLM provider is configured.
func (a *App) InsightEnabled() bool {
	return a.summarizer != nil
}

// Current returns the session's latest outcome, acquiring one first when
// the session has none yet.
func (a *App) Current(ctx context.Context, id string) (*session.Session, error) {
	sess, err := a.sessions.Get(id)
	if err == nil && sess.Outcome != nil {
		return sess, nil
	}
	if err != nil && !errors.Is(err, core.ErrSessionNotFound) {
		return nil, err
	}
	if err == nil && sess.Running {
		return sess, nil
	}
	return a.Rerun(ctx, id)
}

// Rerun acquires a fresh outcome for the session. It fails with
// ErrSessionBusy or ErrRateLimited without running anything.
func (a *App) Rerun(ctx context.Context, id string) (*session.Session, error) {
	if err := a.sessions.Begin(id); err != nil {
		if a.metrics != nil {
			a.metrics.RecordRunRejected(rejectReason(err))
		}
		a.logger.Info("run rejected", zap.String("session", id), zap.Error(err))
		return nil, err
	}
	defer a.sessions.End(id)

	out := a.acquirer.Acquire(ctx)
	a.sessions.Set(id, out)
	if a.metrics != nil {
		a.metrics.SetSessionsActive(a.sessions.Len())
	}

	sess, err := a.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	sess.Running = false
	return sess, nil
}

// Insight returns LLM commentary on the session's current outcome.
func (a *App) Insight(ctx context.Context, id string) (string, error) {
	if a.summarizer == nil {
		return "", core.ErrInsightDisabled
	}
	sess, err := a.sessions.Get(id)
	if err != nil || sess.Outcome == nil {
		return "", core.ErrNoResults
	}
	return a.summarizer.Summarize(ctx, *sess.Outcome)
}

// Summarize returns LLM commentary on an outcome outside any session.
func (a *App) Summarize(ctx context.Context, out backtest.Outcome) (string, error) {
	if a.summarizer == nil {
		return "", core.ErrInsightDisabled
	}
	return a.summarizer.Summarize(ctx, out)
}

// Sweep drops expired sessions and refreshes the session gauge.
func (a *App) Sweep() {
	if n := a.sessions.Sweep(); n > 0 {
		a.logger.Debug("expired sessions removed", zap.Int("count", n))
	}
	if a.metrics != nil {
		a.metrics.SetSessionsActive(a.sessions.Len())
	}
}

// RunJanitor calls Sweep every interval until ctx is done.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sweep()
		}
	}
}

func rejectReason(err error) string {
	if errors.Is(err, core.ErrRateLimited) {
		return "rate_limited"
	}
	return "busy"
}
