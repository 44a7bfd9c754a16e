package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/config"
	"github.com/newthinker/investeai/internal/core"
	"github.com/newthinker/investeai/internal/insight"
	"github.com/newthinker/investeai/internal/metrics"
	"github.com/newthinker/investeai/internal/storage/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProvider struct {
	rec   *backtest.ResultsRecord
	calls int
}

func (m *mockProvider) Name() string                        { return "mock" }
func (m *mockProvider) Available(ctx context.Context) error { return nil }
func (m *mockProvider) Run(ctx context.Context, path string) (*backtest.ResultsRecord, error) {
	m.calls++
	return m.rec, nil
}

type mockCompleter struct{}

func (mockCompleter) Name() string { return "mock" }
func (mockCompleter) Complete(ctx context.Context, req insight.Request) (*insight.Response, error) {
	return &insight.Response{Text: "## Summary\nok"}, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Defaults()
	cfg.Backtest.ModelDir = t.TempDir()
	return cfg
}

func writeModel(t *testing.T, cfg *config.Config) {
	t.Helper()
	path := filepath.Join(cfg.Backtest.ModelDir, cfg.Backtest.ModelFile)
	require.NoError(t, os.WriteFile(path, []byte("weights"), 0644))
}

func sampleRecord() *backtest.ResultsRecord {
	return &backtest.ResultsRecord{
		InitialValue: 100, FinalValue: 105, TotalProfit: 5,
		TotalTrades: 3, Wins: 2, Losses: 1, WinRate: 66.67, SharpeRatio: 0.8,
		ChartData: backtest.ChartData{
			Steps:   []int{0, 1, 2, 3, 4},
			Equity:  []float64{100, 101, 99, 99, 105},
			Actions: []float64{0, 1, -1, 0, 2},
		},
	}
}

func TestNew_DefaultsBuildPythonProvider(t *testing.T) {
	a, err := New(testConfig(t), nil, Options{})
	require.NoError(t, err)
	assert.NotNil(t, a.Acquirer())
	assert.False(t, a.InsightEnabled())
	assert.Equal(t, "model_ep30.keras", filepath.Base(a.ModelPath()))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.BacktestConfig{}, nil)
	assert.NoError(t, err)
	assert.Nil(t, p)

	cfg := config.Defaults().Backtest
	cfg.Provider = "remote"
	cfg.Remote.URL = "http://backtester:8000"
	p, err = NewProvider(cfg, zapNop())
	require.NoError(t, err)
	assert.Equal(t, "http://backtester:8000", p.Name())

	cfg.Provider = "python"
	cfg.Python.Module = "bad module"
	_, err = NewProvider(cfg, zapNop())
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))

	cfg.Provider = "julia"
	_, err = NewProvider(cfg, zapNop())
	assert.True(t, errors.Is(err, core.ErrConfigInvalid))
}

func TestNewModelStore_LocalFS(t *testing.T) {
	cfg := testConfig(t)
	writeModel(t, cfg)

	store, err := NewModelStore(cfg)
	require.NoError(t, err)
	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"model_ep30.keras"}, names)

	_, ok := store.(*model.LocalFS)
	assert.True(t, ok)
}

func TestApp_CurrentAcquiresOnce(t *testing.T) {
	cfg := testConfig(t)
	writeModel(t, cfg)
	p := &mockProvider{rec: sampleRecord()}
	reg := metrics.NewRegistry()

	a, err := New(cfg, nil, Options{Provider: p, Metrics: reg})
	require.NoError(t, err)

	ctx := context.Background()
	sess, err := a.Current(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, sess.Outcome)
	assert.False(t, sess.Outcome.IsFallback())
	assert.False(t, sess.Running)

	// Cached for the session
	_, err = a.Current(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls)

	// A new session acquires on its own
	_, err = a.Current(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
	assert.Equal(t, 2, a.Sessions().Len())
}

func TestApp_FallsBackWithoutModel(t *testing.T) {
	a, err := New(testConfig(t), nil, Options{Provider: &mockProvider{rec: sampleRecord()}})
	require.NoError(t, err)

	sess, err := a.Current(context.Background(), "s1")
	require.NoError(t, err)
	assert.True(t, sess.Outcome.IsFallback())
	assert.Equal(t, "MODEL_FILE_MISSING", sess.Outcome.ReasonCode())
}

func TestApp_NoProvider(t *testing.T) {
	cfg := testConfig(t)
	writeModel(t, cfg)
	a, err := New(cfg, nil, Options{NoProvider: true})
	require.NoError(t, err)

	sess, err := a.Current(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "ENTRY_POINT_UNAVAILABLE", sess.Outcome.ReasonCode())
}

func TestApp_RerunRateLimited(t *testing.T) {
	cfg := testConfig(t)
	writeModel(t, cfg)
	cfg.Session.RunsPerMinute = 1
	cfg.Session.RunBurst = 1

	a, err := New(cfg, nil, Options{Provider: &mockProvider{rec: sampleRecord()}, Metrics: metrics.NewRegistry()})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.Rerun(ctx, "s1")
	require.NoError(t, err)

	_, err = a.Rerun(ctx, "s1")
	assert.True(t, errors.Is(err, core.ErrRateLimited))

	// The earlier outcome is still served
	sess, err := a.Current(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, sess.Outcome)
}

func TestApp_Insight(t *testing.T) {
	cfg := testConfig(t)
	writeModel(t, cfg)

	a, err := New(cfg, nil, Options{Provider: &mockProvider{rec: sampleRecord()}})
	require.NoError(t, err)
	_, err = a.Insight(context.Background(), "s1")
	assert.True(t, errors.Is(err, core.ErrInsightDisabled))

	a, err = New(cfg, nil, Options{Provider: &mockProvider{rec: sampleRecord()}, Completer: mockCompleter{}})
	require.NoError(t, err)
	assert.True(t, a.InsightEnabled())

	_, err = a.Insight(context.Background(), "s1")
	assert.True(t, errors.Is(err, core.ErrNoResults))

	_, err = a.Current(context.Background(), "s1")
	require.NoError(t, err)
	text, err := a.Insight(context.Background(), "s1")
	require.NoError(t, err)
	assert.Contains(t, text, "Summary")
}

func zapNop() *zap.Logger { return zap.NewNop() }

func TestApp_RunJanitor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.TTL = time.Millisecond
	writeModel(t, cfg)
	a, err := New(cfg, nil, Options{Provider: &mockProvider{rec: sampleRecord()}})
	require.NoError(t, err)

	_, err = a.Rerun(context.Background(), "s1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return a.Sessions().Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
