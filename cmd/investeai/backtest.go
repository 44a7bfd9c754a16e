package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/newthinker/investeai/internal/app"
	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/chart"
	"github.com/spf13/cobra"
)

var (
	backtestMode    string
	backtestJSON    bool
	backtestSVG     string
	backtestInsight bool
	backtestStrict  bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the backtest once and print a report",
	Long: `Run the model backtest once and print the metrics and the trade operations
selected by --mode. Failures fall back to example values unless --strict is set.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestMode, "mode", "all", "operations to list: all, buys or sells")
	backtestCmd.Flags().BoolVar(&backtestJSON, "json", false, "print the outcome as JSON")
	backtestCmd.Flags().StringVar(&backtestSVG, "svg", "", "write the equity chart to this SVG file")
	backtestCmd.Flags().BoolVar(&backtestInsight, "insight", false, "append LLM commentary (requires llm.provider)")
	backtestCmd.Flags().BoolVar(&backtestStrict, "strict", false, "fail instead of falling back to example values")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	mode, err := backtest.ParseMode(backtestMode)
	if err != nil {
		return fmt.Errorf("invalid --mode %q: %w", backtestMode, err)
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	application, err := app.New(cfg, log, app.Options{})
	if err != nil {
		return fmt.Errorf("creating app: %w", err)
	}

	ctx := cmd.Context()
	var out backtest.Outcome
	if backtestStrict {
		start := time.Now()
		rec, err := application.Acquirer().Run(ctx)
		if err != nil {
			return err
		}
		out = backtest.Outcome{
			Record:      rec,
			Source:      backtest.SourceBacktest,
			ModelPath:   application.ModelPath(),
			Duration:    time.Since(start),
			CompletedAt: time.Now(),
		}
	} else {
		out = application.Acquirer().Acquire(ctx)
	}

	if backtestSVG != "" {
		if err := writeChart(backtestSVG, out.Record); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if backtestJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			backtest.Outcome
			Reason string                `json:"reason"`
			Mode   backtest.Mode         `json:"mode"`
			Events []backtest.TradeEvent `json:"events"`
		}{out, out.ReasonCode(), mode, backtest.Project(out.Record.ChartData, mode)})
	}

	printReport(w, out, mode)

	if backtestInsight {
		return printInsight(ctx, w, application, out)
	}
	return nil
}

func printReport(w io.Writer, out backtest.Outcome, mode backtest.Mode) {
	rec := out.Record

	fmt.Fprintln(w, "=== InvesteAI Backtest ===")
	if out.ModelPath != "" {
		fmt.Fprintf(w, "Model:  %s\n", out.ModelPath)
	}
	if out.IsFallback() {
		fmt.Fprintf(w, "Source: example values (%s)\n", out.ReasonCode())
	} else {
		fmt.Fprintf(w, "Source: backtest (%s)\n", out.Duration.Round(time.Millisecond))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Initial value:  %s\n", chart.Money(rec.InitialValue))
	fmt.Fprintf(w, "Final value:    %s\n", chart.Money(rec.FinalValue))
	fmt.Fprintf(w, "Total profit:   %s\n", chart.Money(rec.TotalProfit))
	fmt.Fprintf(w, "Total trades:   %d\n", rec.TotalTrades)
	fmt.Fprintf(w, "Wins / Losses:  %d / %d\n", rec.Wins, rec.Losses)
	fmt.Fprintf(w, "Win rate:       %s\n", chart.Percent(rec.WinRate))
	fmt.Fprintf(w, "Sharpe ratio:   %s\n", chart.Ratio(rec.SharpeRatio))

	stats := backtest.CalculateCurveStats(rec.ChartData.Equity)
	fmt.Fprintf(w, "Max drawdown:   %s\n", chart.Percent(stats.MaxDrawdown))
	fmt.Fprintln(w)

	events := backtest.Project(rec.ChartData, mode)
	fmt.Fprintf(w, "=== Operations: %s (%d) ===\n", mode.Label(), len(events))
	if len(events) == 0 {
		fmt.Fprintln(w, mode.EmptyNotice())
		return
	}
	for _, ev := range events {
		side := "-"
		if ev.Side != backtest.SideNone {
			side = string(ev.Side)
		}
		fmt.Fprintf(w, "%6d  %-4s  %s\n", ev.Step, side, chart.Money(ev.Equity))
	}
}

func printInsight(ctx context.Context, w io.Writer, application *app.App, out backtest.Outcome) error {
	text, err := application.Summarize(ctx, out)
	if err != nil {
		return fmt.Errorf("insight: %w", err)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		if rendered, err := r.Render(text); err == nil {
			text = rendered
		}
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, text)
	return nil
}

func writeChart(path string, rec *backtest.ResultsRecord) error {
	buys, sells := backtest.Partition(rec.ChartData)
	svg, err := chart.EquitySVG(rec.ChartData, []chart.Series{
		chart.BuySeries(buys, 6),
		chart.SellSeries(sells, 6),
	}, chart.SVGOptions{
		Title:      "Total profit: " + chart.Money(rec.TotalProfit),
		Standalone: true,
	})
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}
	if err := os.WriteFile(path, svg, 0644); err != nil {
		return fmt.Errorf("writing chart: %w", err)
	}
	return nil
}
