// Package chart renders equity curves and trade markers as SVG.
package chart

import (
	"bytes"
	"errors"
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/newthinker/investeai/internal/backtest"
)

// Marker colours
const (
	BuyColor  = "#3b82f6"
	SellColor = "#ef4444"
)

// Series is a set of trade events drawn as markers over the curve.
type Series struct {
	Name   string
	Color  string
	Radius float64
	Events []backtest.TradeEvent
}

type SVGOptions struct {
	Width      int
	Height     int
	Title      string
	Standalone bool // emit an XML prolog for writing to a file
}

func (o SVGOptions) withDefaults() SVGOptions {
	if o.Width <= 0 {
		o.Width = 800
	}
	if o.Height <= 0 {
		o.Height = 500
	}
	return o
}

// BuySeries and SellSeries style the two marker kinds.
func BuySeries(events []backtest.TradeEvent, radius float64) Series {
	return Series{Name: "Buy", Color: BuyColor, Radius: radius, Events: events}
}

func SellSeries(events []backtest.TradeEvent, radius float64) Series {
	return Series{Name: "Sell", Color: SellColor, Radius: radius, Events: events}
}

// SeriesFor returns the marker series matching a filter mode. All has no
// markers of its own.
func SeriesFor(mode backtest.Mode, events []backtest.TradeEvent, radius float64) []Series {
	switch mode {
	case backtest.ModeBuys:
		return []Series{BuySeries(events, radius)}
	case backtest.ModeSells:
		return []Series{SellSeries(events, radius)}
	default:
		return nil
	}
}

// EquitySVG draws the equity curve of data with the given marker series.
func EquitySVG(data backtest.ChartData, series []Series, opt SVGOptions) ([]byte, error) {
	opt = opt.withDefaults()
	n := min(data.Len(), len(data.Equity))
	if n == 0 {
		return nil, errors.New("no chart points")
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	minS, maxS := data.Steps[0], data.Steps[0]
	for i := 0; i < n; i++ {
		minV = math.Min(minV, data.Equity[i])
		maxV = math.Max(maxV, data.Equity[i])
		minS = min(minS, data.Steps[i])
		maxS = max(maxS, data.Steps[i])
	}
	if math.IsInf(minV, 0) || math.IsInf(maxV, 0) || math.IsNaN(minV) || math.IsNaN(maxV) {
		return nil, errors.New("invalid equity range")
	}
	pad := (maxV - minV) * 0.05
	if pad <= 0 {
		pad = math.Max(math.Abs(minV)*0.02, 1)
	}
	minV -= pad
	maxV += pad

	// Layout
	w := float64(opt.Width)
	h := float64(opt.Height)
	mLeft := 96.0
	mRight := 20.0
	mTop := 36.0
	mBottom := 44.0
	plotW := w - mLeft - mRight
	plotH := h - mTop - mBottom
	if plotW <= 10 || plotH <= 10 {
		return nil, errors.New("invalid chart size")
	}

	valueToY := func(v float64) float64 {
		r := (v - minV) / (maxV - minV)
		r = math.Max(0, math.Min(1, r))
		return mTop + (1.0-r)*plotH
	}
	stepToX := func(s int) float64 {
		if maxS == minS {
			return mLeft + plotW/2
		}
		return mLeft + float64(s-minS)/float64(maxS-minS)*plotW
	}

	bg := "#0b1220"
	grid := "rgba(255,255,255,0.08)"
	line := "#22c55e"
	txt := "rgba(255,255,255,0.85)"
	font := `font-family="ui-monospace, Menlo, Monaco, Consolas, monospace"`

	var buf bytes.Buffer
	if opt.Standalone {
		buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	}
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + strconv.Itoa(opt.Width) + `" height="` + strconv.Itoa(opt.Height) +
		`" viewBox="0 0 ` + strconv.Itoa(opt.Width) + ` ` + strconv.Itoa(opt.Height) + `" role="img">` + "\n")
	buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + bg + `"/>` + "\n")

	if title := strings.TrimSpace(opt.Title); title != "" {
		buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="22" fill="` + txt + `" font-size="15" ` + font + `>` +
			html.EscapeString(title) + `</text>` + "\n")
	}

	// Grid: value lines (5)
	for k := 0; k <= 5; k++ {
		y := mTop + (float64(k)/5.0)*plotH
		buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(y) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(y) +
			`" stroke="` + grid + `" stroke-width="1"/>` + "\n")
		v := maxV - (float64(k)/5.0)*(maxV-minV)
		buf.WriteString(`<text x="6" y="` + fmtFloat(y+4) + `" fill="` + txt + `" font-size="11" ` + font + `>` +
			html.EscapeString(axisMoney(v)) + `</text>` + "\n")
	}

	// Equity curve
	if n == 1 {
		buf.WriteString(`<circle cx="` + fmtFloat(stepToX(data.Steps[0])) + `" cy="` + fmtFloat(valueToY(data.Equity[0])) +
			`" r="2.5" fill="` + line + `"/>` + "\n")
	} else {
		var pts strings.Builder
		for i := 0; i < n; i++ {
			if i > 0 {
				pts.WriteByte(' ')
			}
			pts.WriteString(fmtFloat(stepToX(data.Steps[i])) + "," + fmtFloat(valueToY(data.Equity[i])))
		}
		buf.WriteString(`<polyline fill="none" stroke="` + line + `" stroke-width="1.6" points="` + pts.String() + `"/>` + "\n")
	}

	// Markers
	for _, s := range series {
		col := strings.TrimSpace(s.Color)
		if col == "" {
			col = "#38bdf8"
		}
		r := s.Radius
		if r <= 0 {
			r = 5
		}
		for _, ev := range s.Events {
			buf.WriteString(`<circle class="marker" cx="` + fmtFloat(stepToX(ev.Step)) + `" cy="` + fmtFloat(valueToY(ev.Equity)) +
				`" r="` + fmtFloat(r) + `" fill="` + col + `" fill-opacity="0.9"><title>` +
				html.EscapeString(s.Name+" @ "+strconv.Itoa(ev.Step)+": "+Money(ev.Equity)) + `</title></circle>` + "\n")
		}
	}

	// Legend
	lx := mLeft + plotW - 10
	for i := len(series) - 1; i >= 0; i-- {
		s := series[i]
		if len(s.Events) == 0 || s.Name == "" {
			continue
		}
		lx -= float64(len(s.Name))*7 + 24
		buf.WriteString(`<circle cx="` + fmtFloat(lx) + `" cy="18" r="5" fill="` + s.Color + `"/>` + "\n")
		buf.WriteString(`<text x="` + fmtFloat(lx+9) + `" y="22" fill="` + txt + `" font-size="12" ` + font + `>` +
			html.EscapeString(s.Name) + `</text>` + "\n")
	}

	// Footer steps
	footY := mTop + plotH + mBottom - 16
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="` + fmtFloat(footY) + `" fill="` + txt + `" font-size="12" ` + font + `>` +
		strconv.Itoa(minS) + `</text>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+plotW/2-18) + `" y="` + fmtFloat(footY) + `" fill="` + txt + `" font-size="12" ` + font + `>Steps</text>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+plotW-40) + `" y="` + fmtFloat(footY) + `" fill="` + txt + `" font-size="12" ` + font + `>` +
		strconv.Itoa(maxS) + `</text>` + "\n")

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}
