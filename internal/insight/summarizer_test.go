package insight

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	text string
	err  error
	got  Request
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &Response{Text: f.text}, nil
}

type fakeRecorder struct{ statuses []string }

func (f *fakeRecorder) RecordInsight(provider, status string) {
	f.statuses = append(f.statuses, provider+":"+status)
}

func realOutcome() backtest.Outcome {
	return backtest.Outcome{
		Source: backtest.SourceBacktest,
		Record: &backtest.ResultsRecord{
			InitialValue: 100, FinalValue: 105, TotalProfit: 5,
			TotalTrades: 3, Wins: 2, Losses: 1, WinRate: 66.67, SharpeRatio: 0.8,
			ChartData: backtest.ChartData{
				Steps:   []int{0, 1, 2, 3, 4},
				Equity:  []float64{100, 101, 99, 99, 105},
				Actions: []float64{0, 1, -1, 0, 2},
			},
		},
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(realOutcome())

	assert.Contains(t, prompt, "Total profit: R$ 5.00")
	assert.Contains(t, prompt, "Trades: 3 (2 winning, 1 losing)")
	assert.Contains(t, prompt, "Win rate: 66.67%")
	assert.Contains(t, prompt, "Buys: 2, sells: 1")
	assert.NotContains(t, prompt, "illustrative")

	// Events are listed in step order
	i1 := strings.Index(prompt, "step 1: buy")
	i2 := strings.Index(prompt, "step 2: sell")
	i4 := strings.Index(prompt, "step 4: buy")
	require.True(t, i1 >= 0 && i2 >= 0 && i4 >= 0, prompt)
	assert.Less(t, i1, i2)
	assert.Less(t, i2, i4)
}

func TestBuildPrompt_FallbackWithoutActions(t *testing.T) {
	out := backtest.Outcome{Source: backtest.SourceFallback, Record: backtest.Fallback(nil)}

	prompt := BuildPrompt(out)
	assert.Contains(t, prompt, "illustrative example values")
	assert.Contains(t, prompt, "Per-step actions were not reported.")
	assert.Contains(t, prompt, "Points: 80")
}

func TestBuildPrompt_CapsEventList(t *testing.T) {
	n := 60
	data := backtest.ChartData{Steps: make([]int, n), Equity: make([]float64, n), Actions: make([]float64, n)}
	for i := range n {
		data.Steps[i] = i
		data.Equity[i] = 100
		data.Actions[i] = 1
	}
	out := backtest.Outcome{Source: backtest.SourceBacktest, Record: &backtest.ResultsRecord{ChartData: data}}

	prompt := BuildPrompt(out)
	assert.Contains(t, prompt, "First 20 of 59 events")
	assert.Equal(t, 20, strings.Count(prompt, ": buy at "))
}

func TestSummarizer_Summarize(t *testing.T) {
	fc := &fakeCompleter{text: "  ## Summary\nGood.  \n"}
	rec := &fakeRecorder{}
	s := NewSummarizer(fc, rec, nil)

	text, err := s.Summarize(context.Background(), realOutcome())
	require.NoError(t, err)
	assert.Equal(t, "## Summary\nGood.", text)
	assert.Equal(t, systemPrompt, fc.got.System)
	assert.Contains(t, fc.got.Prompt, "Final value: R$ 105.00")
	assert.Equal(t, []string{"fake:ok"}, rec.statuses)
}

func TestSummarizer_Failure(t *testing.T) {
	rec := &fakeRecorder{}
	s := NewSummarizer(&fakeCompleter{err: errors.New("rate limited")}, rec, nil)

	_, err := s.Summarize(context.Background(), realOutcome())
	assert.True(t, errors.Is(err, core.ErrLLMFailed))
	assert.Equal(t, []string{"fake:error"}, rec.statuses)
}

func TestSummarizer_NoRecord(t *testing.T) {
	s := NewSummarizer(&fakeCompleter{}, nil, nil)

	_, err := s.Summarize(context.Background(), backtest.Outcome{})
	assert.True(t, errors.Is(err, core.ErrNoResults))
}
