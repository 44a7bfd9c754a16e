package backtest

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ResultsRecord holds one backtest run as shown on the dashboard.
// It is never mutated after acquisition.
type ResultsRecord struct {
	InitialValue float64   `json:"initial_value"`
	FinalValue   float64   `json:"final_value"`
	TotalProfit  float64   `json:"total_profit"`
	TotalTrades  int       `json:"total_trades" validate:"gte=0"`
	Wins         int       `json:"wins" validate:"gte=0"`
	Losses       int       `json:"losses" validate:"gte=0"`
	WinRate      float64   `json:"win_rate" validate:"gte=0,lte=100"` // percentage
	SharpeRatio  float64   `json:"sharpe_ratio"`
	ChartData    ChartData `json:"chart_data"`
}

// ChartData is the equity curve of a run. Actions is nil when the
// entry point does not report per-step actions.
type ChartData struct {
	Steps   []int     `json:"steps"`
	Equity  []float64 `json:"equity"`
	Actions []float64 `json:"actions,omitempty"`
}

// HasActions reports whether per-step actions are available.
func (c ChartData) HasActions() bool {
	return c.Actions != nil
}

// Len returns the number of points on the curve.
func (c ChartData) Len() int {
	return len(c.Steps)
}

// IsEmpty reports whether the record carries nothing worth showing.
func (r *ResultsRecord) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.ChartData.Len() == 0 && r.TotalTrades == 0 &&
		r.InitialValue == 0 && r.FinalValue == 0
}

// Validate checks the structural constraints a record must satisfy
// before it can be rendered.
func (r *ResultsRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid results: %w", err)
	}
	for _, v := range []float64{r.InitialValue, r.FinalValue, r.TotalProfit, r.SharpeRatio} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid results: non-finite metric")
		}
	}
	cd := r.ChartData
	if len(cd.Equity) != len(cd.Steps) {
		return fmt.Errorf("invalid results: %d steps but %d equity points", len(cd.Steps), len(cd.Equity))
	}
	if cd.Actions != nil && len(cd.Actions) != len(cd.Steps) {
		return fmt.Errorf("invalid results: %d steps but %d actions", len(cd.Steps), len(cd.Actions))
	}
	return nil
}

// Inconsistencies lists accounting identities the record violates.
// The backtest entry point is not required to honour them, so callers
// report these rather than reject the record.
func (r *ResultsRecord) Inconsistencies() []string {
	var out []string
	if r.TotalTrades != r.Wins+r.Losses {
		out = append(out, fmt.Sprintf("total_trades %d != wins %d + losses %d", r.TotalTrades, r.Wins, r.Losses))
	}
	if math.Abs(r.FinalValue-r.InitialValue-r.TotalProfit) > 0.01 {
		out = append(out, fmt.Sprintf("final %.2f - initial %.2f != total_profit %.2f", r.FinalValue, r.InitialValue, r.TotalProfit))
	}
	return out
}

// recordWire accepts both the canonical keys and the keys written by
// deepqlearning_investeai.rodar_modelo_backtest.
type recordWire struct {
	InitialValue *float64   `json:"initial_value"`
	ValorInicial *float64   `json:"valor_inicial"`
	FinalValue   *float64   `json:"final_value"`
	ValorFinal   *float64   `json:"valor_final"`
	TotalProfit  *float64   `json:"total_profit"`
	LucroTotal   *float64   `json:"lucro_total"`
	TotalTrades  *int       `json:"total_trades"`
	Wins         *int       `json:"wins"`
	Vencedoras   *int       `json:"vencedoras"`
	Losses       *int       `json:"losses"`
	Perdedoras   *int       `json:"perdedoras"`
	WinRate      *float64   `json:"win_rate"`
	SharpeRatio  *float64   `json:"sharpe_ratio"`
	ChartData    *ChartData `json:"chart_data"`
	DadosGrafico *ChartData `json:"dados_grafico"`
}

// UnmarshalJSON decodes a record from either key set.
func (r *ResultsRecord) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = ResultsRecord{
		InitialValue: firstFloat(w.InitialValue, w.ValorInicial),
		FinalValue:   firstFloat(w.FinalValue, w.ValorFinal),
		TotalProfit:  firstFloat(w.TotalProfit, w.LucroTotal),
		TotalTrades:  firstInt(w.TotalTrades),
		Wins:         firstInt(w.Wins, w.Vencedoras),
		Losses:       firstInt(w.Losses, w.Perdedoras),
		WinRate:      firstFloat(w.WinRate),
		SharpeRatio:  firstFloat(w.SharpeRatio),
	}
	switch {
	case w.ChartData != nil:
		r.ChartData = *w.ChartData
	case w.DadosGrafico != nil:
		r.ChartData = *w.DadosGrafico
	}
	return nil
}

type chartWire struct {
	Steps      []int     `json:"steps"`
	Equity     []float64 `json:"equity"`
	Patrimonio []float64 `json:"patrimonio"`
	Actions    []float64 `json:"actions"`
	Acoes      []float64 `json:"acoes"`
}

// UnmarshalJSON decodes chart data from either key set.
func (c *ChartData) UnmarshalJSON(data []byte) error {
	var w chartWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	c.Steps = w.Steps
	c.Equity = w.Equity
	if c.Equity == nil {
		c.Equity = w.Patrimonio
	}
	c.Actions = w.Actions
	if c.Actions == nil {
		c.Actions = w.Acoes
	}
	return nil
}

func firstFloat(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

func firstInt(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}
