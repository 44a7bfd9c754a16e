package chart

import (
	"github.com/shopspring/decimal"
)

// Money formats v as Brazilian reais with two decimals, e.g. "R$ 1234.56".
func Money(v float64) string {
	return "R$ " + decimal.NewFromFloat(v).StringFixed(2)
}

// Percent formats v, already in percent units, e.g. "54.80%".
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// Ratio formats a dimensionless ratio with two decimals.
func Ratio(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// axisMoney keeps axis labels short.
func axisMoney(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1000)) {
		return "R$ " + d.StringFixed(0)
	}
	return "R$ " + d.StringFixed(2)
}
