package insight

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/chart"
	"github.com/newthinker/investeai/internal/core"
	"go.uber.org/zap"
)

const systemPrompt = `You are a quantitative analyst reviewing the backtest of a deep Q-learning
trading agent. Be concise and concrete. Answer in markdown with three short sections:
Summary, Strengths, Risks. Never give personal investment advice.`

// maxListedEvents caps how many trade events are written into the prompt.
const maxListedEvents = 20

// Recorder receives one observation per insight request.
type Recorder interface {
	RecordInsight(provider, status string)
}

// Summarizer produces markdown commentary on a results record.
type Summarizer struct {
	completer Completer
	recorder  Recorder
	logger    *zap.Logger
	timeout   time.Duration
}

// NewSummarizer creates a Summarizer. recorder and logger may be nil.
func NewSummarizer(c Completer, recorder Recorder, logger *zap.Logger) *Summarizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Summarizer{completer: c, recorder: recorder, logger: logger, timeout: 2 * time.Minute}
}

// Summarize asks the model for commentary on out's record.
func (s *Summarizer) Summarize(ctx context.Context, out backtest.Outcome) (string, error) {
	if out.Record == nil {
		return "", core.ErrNoResults
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.completer.Complete(ctx, Request{
		System:      systemPrompt,
		Prompt:      BuildPrompt(out),
		MaxTokens:   800,
		Temperature: 0.3,
	})
	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.recorder != nil {
		s.recorder.RecordInsight(s.completer.Name(), status)
	}
	if err != nil {
		s.logger.Warn("insight failed", zap.String("provider", s.completer.Name()), zap.Error(err))
		return "", core.WrapError(core.ErrLLMFailed, err)
	}

	s.logger.Info("insight generated",
		zap.String("provider", s.completer.Name()),
		zap.Int("input_tokens", resp.InputTokens),
		zap.Int("output_tokens", resp.OutputTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(resp.Text), nil
}

// BuildPrompt renders the record's metrics and a compact view of its
// trade events.
func BuildPrompt(out backtest.Outcome) string {
	rec := out.Record
	var b strings.Builder

	if out.IsFallback() {
		b.WriteString("NOTE: the real backtest was unavailable; these are illustrative example values.\n\n")
	}

	b.WriteString("## Metrics\n")
	fmt.Fprintf(&b, "- Initial value: %s\n", chart.Money(rec.InitialValue))
	fmt.Fprintf(&b, "- Final value: %s\n", chart.Money(rec.FinalValue))
	fmt.Fprintf(&b, "- Total profit: %s\n", chart.Money(rec.TotalProfit))
	fmt.Fprintf(&b, "- Trades: %d (%d winning, %d losing)\n", rec.TotalTrades, rec.Wins, rec.Losses)
	fmt.Fprintf(&b, "- Win rate: %s\n", chart.Percent(rec.WinRate))
	fmt.Fprintf(&b, "- Sharpe ratio: %s\n", chart.Ratio(rec.SharpeRatio))

	stats := backtest.CalculateCurveStats(rec.ChartData.Equity)
	b.WriteString("\n## Equity curve\n")
	fmt.Fprintf(&b, "- Points: %d\n", stats.Points)
	fmt.Fprintf(&b, "- Peak: %s, trough: %s\n", chart.Money(stats.Peak), chart.Money(stats.Trough))
	fmt.Fprintf(&b, "- Max drawdown: %s\n", chart.Percent(stats.MaxDrawdown))

	b.WriteString("\n## Trade events\n")
	if !rec.ChartData.HasActions() {
		b.WriteString("Per-step actions were not reported.\n")
		return b.String()
	}

	buys, sells := backtest.Partition(rec.ChartData)
	fmt.Fprintf(&b, "- Buys: %d, sells: %d\n", len(buys), len(sells))

	events := append(append([]backtest.TradeEvent{}, buys...), sells...)
	sortByStep(events)
	if len(events) > maxListedEvents {
		fmt.Fprintf(&b, "First %d of %d events:\n", maxListedEvents, len(events))
		events = events[:maxListedEvents]
	}
	for _, ev := range events {
		fmt.Fprintf(&b, "- step %d: %s at %s\n", ev.Step, ev.Side, chart.Money(ev.Equity))
	}
	return b.String()
}

func sortByStep(events []backtest.TradeEvent) {
	slices.SortStableFunc(events, func(a, b backtest.TradeEvent) int {
		return a.Step - b.Step
	})
}
