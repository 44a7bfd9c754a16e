package backtest

import (
	"strings"

	"github.com/newthinker/investeai/internal/core"
)

// Mode selects which points of a curve are projected.
type Mode string

const (
	ModeAll   Mode = "all"
	ModeBuys  Mode = "buys"
	ModeSells Mode = "sells"
)

// Modes lists the selector options in display order.
var Modes = []Mode{ModeAll, ModeBuys, ModeSells}

// ParseMode accepts all|buys|sells and the todas|compras|vendas labels.
// An empty string means ModeAll.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "todas":
		return ModeAll, nil
	case "buys", "buy", "compras":
		return ModeBuys, nil
	case "sells", "sell", "vendas":
		return ModeSells, nil
	default:
		return "", core.WrapError(core.ErrInvalidMode, nil)
	}
}

// Label returns the selector label.
func (m Mode) Label() string {
	switch m {
	case ModeBuys:
		return "Buys"
	case ModeSells:
		return "Sells"
	default:
		return "All"
	}
}

// EmptyNotice is shown in place of a filtered view with no events.
func (m Mode) EmptyNotice() string {
	switch m {
	case ModeBuys:
		return "No buy operations to display."
	case ModeSells:
		return "No sell operations to display."
	default:
		return "No points to display."
	}
}

// Side classifies a trade event.
type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// TradeEvent is a point of the equity curve, classified when it comes
// from a buy or sell action.
type TradeEvent struct {
	Step   int     `json:"step"`
	Equity float64 `json:"equity"`
	Side   Side    `json:"side,omitempty"`
}

// Project returns the events of data visible under mode. ModeAll yields
// every point of the curve and never consults the actions. ModeBuys and
// ModeSells classify indices 1..n-1 by the sign of their action; zero
// actions are neither, and without actions the result is empty. Any other
// mode yields no events.
func Project(data ChartData, mode Mode) []TradeEvent {
	n := min(len(data.Steps), len(data.Equity))

	if mode == ModeAll {
		events := make([]TradeEvent, 0, n)
		for i := range n {
			events = append(events, TradeEvent{Step: data.Steps[i], Equity: data.Equity[i]})
		}
		return events
	}

	events := []TradeEvent{}
	var want Side
	switch mode {
	case ModeBuys:
		want = SideBuy
	case ModeSells:
		want = SideSell
	default:
		return events
	}
	if !data.HasActions() {
		return events
	}

	n = min(n, len(data.Actions))
	for i := 1; i < n; i++ {
		if classify(data.Actions[i]) == want {
			events = append(events, TradeEvent{Step: data.Steps[i], Equity: data.Equity[i], Side: want})
		}
	}
	return events
}

// Partition splits the classified indices into buy and sell markers in
// a single pass.
func Partition(data ChartData) (buys, sells []TradeEvent) {
	buys, sells = []TradeEvent{}, []TradeEvent{}
	if !data.HasActions() {
		return buys, sells
	}

	n := min(len(data.Steps), len(data.Equity), len(data.Actions))
	for i := 1; i < n; i++ {
		ev := TradeEvent{Step: data.Steps[i], Equity: data.Equity[i]}
		switch classify(data.Actions[i]) {
		case SideBuy:
			ev.Side = SideBuy
			buys = append(buys, ev)
		case SideSell:
			ev.Side = SideSell
			sells = append(sells, ev)
		}
	}
	return buys, sells
}

func classify(action float64) Side {
	switch {
	case action > 0:
		return SideBuy
	case action < 0:
		return SideSell
	default:
		return SideNone
	}
}
