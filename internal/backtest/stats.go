package backtest

import (
	"math"
)

// CurveStats holds statistics derived from the equity curve itself.
type CurveStats struct {
	Points      int
	Peak        float64
	Trough      float64
	MaxDrawdown float64 // Largest peak-to-trough decline, percent
	StepSharpe  float64 // Sharpe ratio of per-step returns, annualized
}

// CalculateCurveStats computes statistics of an equity curve
func CalculateCurveStats(equity []float64) CurveStats {
	if len(equity) == 0 {
		return CurveStats{}
	}

	peak, trough := equity[0], equity[0]
	for _, v := range equity {
		peak = math.Max(peak, v)
		trough = math.Min(trough, v)
	}

	return CurveStats{
		Points:      len(equity),
		Peak:        peak,
		Trough:      trough,
		MaxDrawdown: calculateMaxDrawdown(equity) * 100,
		StepSharpe:  calculateSharpeRatio(stepReturns(equity)),
	}
}

// stepReturns converts equity values into simple per-step returns
func stepReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			continue
		}
		returns = append(returns, equity[i]/equity[i-1]-1)
	}
	return returns
}

// calculateMaxDrawdown finds the largest peak-to-trough decline
func calculateMaxDrawdown(equity []float64) float64 {
	var maxDD float64
	var peak float64

	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// calculateSharpeRatio computes risk-adjusted return
// Assumes risk-free rate of 0 for simplicity
func calculateSharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	// Calculate mean return
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	// Calculate standard deviation
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}

	// Annualize (assuming ~252 trading days)
	return mean / stdDev * math.Sqrt(252)
}
