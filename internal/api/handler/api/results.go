package api

import (
	"context"
	"net/http"
	"time"

	"github.com/newthinker/investeai/internal/api/middleware"
	"github.com/newthinker/investeai/internal/api/response"
	"github.com/newthinker/investeai/internal/backtest"
	"github.com/newthinker/investeai/internal/session"
)

// ResultsService is the part of the application the results API needs.
type ResultsService interface {
	Current(ctx context.Context, id string) (*session.Session, error)
	Rerun(ctx context.Context, id string) (*session.Session, error)
	Insight(ctx context.Context, id string) (string, error)
}

// ResultView is the JSON shape of a session's current results.
type ResultView struct {
	Source      backtest.Source         `json:"source"`
	Fallback    bool                    `json:"fallback"`
	Reason      string                  `json:"reason"`
	ReasonText  string                  `json:"reason_message,omitempty"`
	ReasonCause string                  `json:"reason_cause,omitempty"`
	Stale       bool                    `json:"stale"`
	Running     bool                    `json:"running"`
	ModelPath   string                  `json:"model_path,omitempty"`
	Record      *backtest.ResultsRecord `json:"record"`
	Messages    []backtest.Message      `json:"messages"`
	DurationMS  int64                   `json:"duration_ms"`
	CompletedAt time.Time               `json:"completed_at"`
}

// EventsView is the JSON shape of a filtered trade event list.
type EventsView struct {
	Mode   backtest.Mode         `json:"mode"`
	Label  string                `json:"label"`
	Count  int                   `json:"count"`
	Events []backtest.TradeEvent `json:"events"`
	Notice string                `json:"notice,omitempty"`
}

// ResultsHandler handles results API requests.
type ResultsHandler struct {
	service ResultsService
}

// NewResultsHandler creates a new results handler.
func NewResultsHandler(service ResultsService) *ResultsHandler {
	return &ResultsHandler{service: service}
}

// Get returns the session's results, acquiring them on first use.
func (h *ResultsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionID(r.Context())
	sess, err := h.service.Current(r.Context(), id)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	if sess.Outcome == nil {
		// First acquisition still running in another request
		response.JSONWithSession(w, http.StatusAccepted, id, ResultView{Running: true})
		return
	}
	response.JSONWithSession(w, http.StatusOK, id, NewResultView(sess))
}

// Run re-runs the acquisition for the session.
func (h *ResultsHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionID(r.Context())
	sess, err := h.service.Rerun(r.Context(), id)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSONWithSession(w, http.StatusOK, id, NewResultView(sess))
}

// Events returns the trade events visible under ?mode=all|buys|sells.
func (h *ResultsHandler) Events(w http.ResponseWriter, r *http.Request) {
	mode, err := backtest.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, err)
		return
	}

	id := middleware.SessionID(r.Context())
	sess, err := h.service.Current(r.Context(), id)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	if sess.Outcome == nil {
		response.JSONWithSession(w, http.StatusAccepted, id, EventsView{Mode: mode, Label: mode.Label(), Events: []backtest.TradeEvent{}})
		return
	}

	response.JSONWithSession(w, http.StatusOK, id, NewEventsView(sess.Outcome.Record.ChartData, mode))
}

// Insight returns LLM commentary on the session's results.
func (h *ResultsHandler) Insight(w http.ResponseWriter, r *http.Request) {
	id := middleware.SessionID(r.Context())
	if _, err := h.service.Current(r.Context(), id); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	text, err := h.service.Insight(r.Context(), id)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSONWithSession(w, http.StatusOK, id, map[string]string{
		"format": "markdown",
		"text":   text,
	})
}

// NewResultView flattens a session for JSON output.
func NewResultView(sess *session.Session) ResultView {
	out := sess.Outcome
	v := ResultView{
		Source:      out.Source,
		Fallback:    out.IsFallback(),
		Reason:      out.ReasonCode(),
		Stale:       sess.Stale,
		Running:     sess.Running,
		ModelPath:   out.ModelPath,
		Record:      out.Record,
		Messages:    out.Messages,
		DurationMS:  out.Duration.Milliseconds(),
		CompletedAt: out.CompletedAt,
	}
	if out.Reason != nil {
		v.ReasonText = out.Reason.Message
		if out.Reason.Cause != nil {
			v.ReasonCause = out.Reason.Cause.Error()
		}
	}
	if v.Messages == nil {
		v.Messages = []backtest.Message{}
	}
	return v
}

// NewEventsView projects data under mode.
func NewEventsView(data backtest.ChartData, mode backtest.Mode) EventsView {
	events := backtest.Project(data, mode)
	if events == nil {
		events = []backtest.TradeEvent{}
	}
	v := EventsView{
		Mode:   mode,
		Label:  mode.Label(),
		Count:  len(events),
		Events: events,
	}
	if len(events) == 0 {
		v.Notice = mode.EmptyNotice()
	}
	return v
}
