// internal/api/handler/web/dashboard.go
package web

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/newthinker/investeai/internal/api/middleware"
	"github.com/newthinker/investeai/internal/api/response"
	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/chart"
	"github.com/newthinker/investeai/internal/core"
	"github.com/newthinker/investeai/internal/session"
)

// Marker sizes of the main and the filtered chart
const (
	mainMarkerRadius     = 6
	filteredMarkerRadius = 7.5
	filteredChartHeight  = 400
)

// Notices passed back to the dashboard after POST /run
const (
	noticeBusy        = "busy"
	noticeRateLimited = "rate_limited"
)

const noChartNotice = "The backtest reported no chart data."

var noticeText = map[string]string{
	noticeBusy:        "A backtest is already running for this session.",
	noticeRateLimited: "Too many runs. Wait a moment and try again.",
}

// MetricView is one cell of the metrics panel.
type MetricView struct {
	Label string
	Value string
	Tone  string // "pos", "neg" or ""
}

// ModeOption is one entry of the trade filter selector.
type ModeOption struct {
	Value    backtest.Mode
	Label    string
	Selected bool
}

// DashboardData holds data for the dashboard template
type DashboardData struct {
	Title          string
	Running        bool
	Error          string
	Notice         string
	Fallback       bool
	Reason         string
	ReasonMessage  string
	Stale          bool
	ModelPath      string
	Metrics        []MetricView
	MainChart      template.HTML
	ChartNotice    string
	Mode           backtest.Mode
	ModeLabel      string
	Modes          []ModeOption
	FilteredChart  template.HTML
	FilteredCount  int
	FilteredNotice string
	Messages       []backtest.Message
	InsightEnabled bool
}

// Dashboard renders the dashboard page
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	mode, err := backtest.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		mode = backtest.ModeAll
	}

	data := DashboardData{
		Title:     "Backtest results",
		Mode:      mode,
		ModeLabel: mode.Label(),
		Modes:     modeOptions(mode),
		Notice:    noticeText[r.URL.Query().Get("notice")],
	}

	if h.service == nil {
		data.Error = "Results service unavailable."
		h.render(w, http.StatusServiceUnavailable, "dashboard.html", data)
		return
	}
	data.InsightEnabled = h.service.InsightEnabled()

	sess, err := h.service.Current(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		data.Error = err.Error()
		h.render(w, response.StatusFor(err), "dashboard.html", data)
		return
	}
	if sess.Outcome == nil {
		data.Running = true
		h.render(w, http.StatusOK, "dashboard.html", data)
		return
	}

	if err := fillResults(&data, sess); err != nil {
		data.Error = err.Error()
		h.render(w, http.StatusInternalServerError, "dashboard.html", data)
		return
	}
	h.render(w, http.StatusOK, "dashboard.html", data)
}

// Run re-runs the backtest for the session and redirects to the dashboard.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	q := url.Values{}
	if mode, err := backtest.ParseMode(r.FormValue("mode")); err == nil && mode != backtest.ModeAll {
		q.Set("mode", string(mode))
	}

	if h.service == nil {
		http.Error(w, "results service unavailable", http.StatusServiceUnavailable)
		return
	}

	_, err := h.service.Rerun(r.Context(), middleware.SessionID(r.Context()))
	switch {
	case err == nil:
	case errors.Is(err, core.ErrSessionBusy):
		q.Set("notice", noticeBusy)
	case errors.Is(err, core.ErrRateLimited):
		q.Set("notice", noticeRateLimited)
	default:
		http.Error(w, err.Error(), response.StatusFor(err))
		return
	}

	target := "/"
	if len(q) > 0 {
		target += "?" + q.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func fillResults(data *DashboardData, sess *session.Session) error {
	out := sess.Outcome
	rec := out.Record

	data.Fallback = out.IsFallback()
	data.Reason = out.ReasonCode()
	if out.Reason != nil {
		data.ReasonMessage = out.Reason.Error()
	}
	data.Stale = sess.Stale
	data.ModelPath = out.ModelPath
	data.Messages = out.Messages
	data.Metrics = metricViews(rec)

	if rec.ChartData.Len() == 0 {
		data.ChartNotice = noChartNotice
		data.FilteredNotice = data.Mode.EmptyNotice()
		return nil
	}

	buys, sells := backtest.Partition(rec.ChartData)
	mainSVG, err := chart.EquitySVG(rec.ChartData, []chart.Series{
		chart.BuySeries(buys, mainMarkerRadius),
		chart.SellSeries(sells, mainMarkerRadius),
	}, chart.SVGOptions{Title: "Total profit: " + chart.Money(rec.TotalProfit)})
	if err != nil {
		return err
	}
	data.MainChart = template.HTML(mainSVG)

	events := backtest.Project(rec.ChartData, data.Mode)
	data.FilteredCount = len(events)
	if len(events) == 0 {
		data.FilteredNotice = data.Mode.EmptyNotice()
		return nil
	}
	filtered, err := chart.EquitySVG(rec.ChartData,
		chart.SeriesFor(data.Mode, events, filteredMarkerRadius),
		chart.SVGOptions{Height: filteredChartHeight, Title: "Operations: " + data.Mode.Label()})
	if err != nil {
		return err
	}
	data.FilteredChart = template.HTML(filtered)
	return nil
}

func metricViews(rec *backtest.ResultsRecord) []MetricView {
	stats := backtest.CalculateCurveStats(rec.ChartData.Equity)
	return []MetricView{
		{Label: "Initial value", Value: chart.Money(rec.InitialValue)},
		{Label: "Final value", Value: chart.Money(rec.FinalValue)},
		{Label: "Total profit", Value: chart.Money(rec.TotalProfit), Tone: tone(rec.TotalProfit)},
		{Label: "Total trades", Value: strconv.Itoa(rec.TotalTrades)},
		{Label: "Wins", Value: strconv.Itoa(rec.Wins)},
		{Label: "Losses", Value: strconv.Itoa(rec.Losses)},
		{Label: "Win rate", Value: chart.Percent(rec.WinRate)},
		{Label: "Sharpe ratio", Value: chart.Ratio(rec.SharpeRatio)},
		{Label: "Max drawdown", Value: chart.Percent(stats.MaxDrawdown), Tone: tone(-stats.MaxDrawdown)},
	}
}

func modeOptions(selected backtest.Mode) []ModeOption {
	opts := make([]ModeOption, 0, len(backtest.Modes))
	for _, m := range backtest.Modes {
		opts = append(opts, ModeOption{Value: m, Label: m.Label(), Selected: m == selected})
	}
	return opts
}

func tone(v float64) string {
	switch {
	case v > 0:
		return "pos"
	case v < 0:
		return "neg"
	default:
		return ""
	}
}
