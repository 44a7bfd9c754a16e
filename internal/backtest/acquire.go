package backtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/newthinker/investeai/internal/core"
	"go.uber.org/zap"
)

// Provider is the external backtest entry point: it replays a trained
// model and reports the results. A nil record with a nil error means the
// entry point ran but produced nothing.
type Provider interface {
	Name() string
	Available(ctx context.Context) error
	Run(ctx context.Context, modelPath string) (*ResultsRecord, error)
}

// ModelLocator resolves a model file name to a local path. The returned
// path is the expected location even when the file is missing.
type ModelLocator interface {
	Locate(ctx context.Context, name string) (string, error)
}

// Recorder receives one observation per acquisition.
type Recorder interface {
	RecordAcquisition(source, reason string, seconds float64)
}

// Source tells where the record of an outcome came from.
type Source string

const (
	SourceBacktest Source = "backtest"
	SourceFallback Source = "fallback"
)

// Level grades a progress message.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
)

// Message is one human-readable progress line of an acquisition.
type Message struct {
	Level  Level  `json:"level"`
	Text   string `json:"text"`
	Detail string `json:"detail,omitempty"`
}

// Outcome is everything one acquisition produced. Record is never nil.
type Outcome struct {
	Record      *ResultsRecord `json:"record"`
	Source      Source         `json:"source"`
	Reason      *core.Error    `json:"-"`
	ModelPath   string         `json:"model_path,omitempty"`
	Messages    []Message      `json:"messages"`
	Duration    time.Duration  `json:"duration"`
	CompletedAt time.Time      `json:"completed_at"`
}

// IsFallback reports whether the record is the example record.
func (o Outcome) IsFallback() bool {
	return o.Source == SourceFallback
}

// ReasonCode returns the failure code, or "ok" on the success path.
func (o Outcome) ReasonCode() string {
	if o.Reason == nil {
		return "ok"
	}
	return o.Reason.Code
}

// Options configures an Acquirer.
type Options struct {
	Provider  Provider // nil means no entry point is configured
	Locator   ModelLocator
	ModelFile string
	Timeout   time.Duration
	Recorder  Recorder
	Logger    *zap.Logger
	Rand      *rand.Rand // noise source of the example record; nil uses the global one
}

// Acquirer obtains results records.
type Acquirer struct {
	provider  Provider
	locator   ModelLocator
	modelFile string
	timeout   time.Duration
	recorder  Recorder
	logger    *zap.Logger
	rng       *rand.Rand
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(opts Options) *Acquirer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Acquirer{
		provider:  opts.Provider,
		locator:   opts.Locator,
		modelFile: opts.ModelFile,
		timeout:   opts.Timeout,
		recorder:  opts.Recorder,
		logger:    opts.Logger,
		rng:       opts.Rand,
	}
}

// Run invokes the entry point once. It returns the record on success and
// one of ErrEntryPointUnavailable, ErrModelFileMissing, ErrBacktestRuntime
// or ErrBacktestEmptyResult otherwise. It never falls back.
func (a *Acquirer) Run(ctx context.Context) (*ResultsRecord, error) {
	rec, _, err := a.run(ctx, func(Message) {})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Acquire returns an outcome whose record is always usable: the backtest
// result when the entry point succeeds, the example record otherwise.
func (a *Acquirer) Acquire(ctx context.Context) Outcome {
	start := time.Now()
	var out Outcome

	report := func(m Message) {
		out.Messages = append(out.Messages, m)
		fields := []zap.Field{zap.String("level", string(m.Level))}
		if m.Detail != "" {
			fields = append(fields, zap.String("detail", m.Detail))
		}
		switch m.Level {
		case LevelError:
			a.logger.Error(m.Text, fields...)
		case LevelWarn:
			a.logger.Warn(m.Text, fields...)
		default:
			a.logger.Info(m.Text, fields...)
		}
	}

	rec, modelPath, err := a.run(ctx, report)
	out.ModelPath = modelPath
	if err != nil {
		out.Reason = err
		out.Source = SourceFallback
		out.Record = Fallback(a.rng)
		report(Message{Level: LevelInfo, Text: "Using example values for demonstration."})
	} else {
		out.Source = SourceBacktest
		out.Record = rec
	}

	out.Duration = time.Since(start)
	out.CompletedAt = time.Now()

	if a.recorder != nil {
		a.recorder.RecordAcquisition(string(out.Source), out.ReasonCode(), out.Duration.Seconds())
	}
	a.logger.Info("acquisition finished",
		zap.String("source", string(out.Source)),
		zap.String("reason", out.ReasonCode()),
		zap.Duration("duration", out.Duration),
	)
	return out
}

func (a *Acquirer) run(ctx context.Context, report func(Message)) (*ResultsRecord, string, *core.Error) {
	// Entry point
	if a.provider == nil {
		report(Message{Level: LevelError, Text: "No backtest entry point configured."})
		return nil, "", core.WrapError(core.ErrEntryPointUnavailable, errors.New("no provider configured"))
	}
	report(Message{Level: LevelInfo, Text: fmt.Sprintf("Resolving backtest entry point %s...", a.provider.Name())})
	if err := a.provider.Available(ctx); err != nil {
		report(Message{Level: LevelError, Text: "Backtest entry point unavailable.", Detail: err.Error()})
		return nil, "", core.WrapError(core.ErrEntryPointUnavailable, err)
	}
	report(Message{Level: LevelSuccess, Text: "Entry point available."})

	// Model file
	if a.locator == nil {
		report(Message{Level: LevelError, Text: "No model location configured."})
		return nil, "", core.WrapError(core.ErrModelFileMissing, errors.New("no model locator configured"))
	}
	path, err := a.locator.Locate(ctx, a.modelFile)
	report(Message{Level: LevelInfo, Text: fmt.Sprintf("Checking model at %s", path)})
	if err != nil {
		report(Message{Level: LevelError, Text: fmt.Sprintf("Model not found at %s", path), Detail: err.Error()})
		return nil, path, core.WrapError(core.ErrModelFileMissing, err)
	}
	report(Message{Level: LevelInfo, Text: "Model found, starting backtest..."})

	// Invocation
	runCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	rec, err := a.provider.Run(runCtx, path)
	if err != nil {
		report(Message{Level: LevelError, Text: "Backtest failed.", Detail: err.Error()})
		return nil, path, core.WrapError(core.ErrBacktestRuntime, err)
	}
	if rec.IsEmpty() {
		report(Message{Level: LevelError, Text: "Backtest returned no results."})
		return nil, path, core.WrapError(core.ErrBacktestEmptyResult, nil)
	}
	if err := rec.Validate(); err != nil {
		report(Message{Level: LevelError, Text: "Backtest returned malformed results.", Detail: err.Error()})
		return nil, path, core.WrapError(core.ErrBacktestRuntime, err)
	}
	for _, issue := range rec.Inconsistencies() {
		report(Message{Level: LevelWarn, Text: "Results are internally inconsistent.", Detail: issue})
	}

	report(Message{Level: LevelSuccess, Text: "Backtest completed successfully."})
	return rec, path, nil
}
