package backtest

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Example record shown when no real backtest result is available.
const (
	FallbackInitialValue = 100000.00
	FallbackFinalValue   = 124488.52
	FallbackTotalTrades  = 250
	FallbackWins         = 137
	FallbackLosses       = 113
	FallbackWinRate      = 54.80
	FallbackSharpeRatio  = 1.765
	FallbackPoints       = 80

	fallbackNoiseStdDev = 2000.0
	fallbackNoiseScale  = 0.1
)

// Fallback builds the example record. Every field is fixed except the
// equity curve, a straight line from the initial to the final value plus
// scaled cumulative Gaussian noise drawn from rng. A nil rng uses the
// global source.
func Fallback(rng *rand.Rand) *ResultsRecord {
	norm := rand.NormFloat64
	if rng != nil {
		norm = rng.NormFloat64
	}

	steps := make([]int, FallbackPoints)
	equity := make([]float64, FallbackPoints)
	span := FallbackFinalValue - FallbackInitialValue
	var noise float64
	for i := range FallbackPoints {
		steps[i] = i
		noise += norm() * fallbackNoiseStdDev
		line := FallbackInitialValue + span*float64(i)/float64(FallbackPoints-1)
		equity[i] = line + noise*fallbackNoiseScale
	}

	return &ResultsRecord{
		InitialValue: FallbackInitialValue,
		FinalValue:   FallbackFinalValue,
		TotalProfit:  Profit(FallbackInitialValue, FallbackFinalValue),
		TotalTrades:  FallbackTotalTrades,
		Wins:         FallbackWins,
		Losses:       FallbackLosses,
		WinRate:      FallbackWinRate,
		SharpeRatio:  FallbackSharpeRatio,
		ChartData: ChartData{
			Steps:  steps,
			Equity: equity,
		},
	}
}

// Profit returns final minus initial rounded to cents.
func Profit(initial, final float64) float64 {
	return decimal.NewFromFloat(final).
		Sub(decimal.NewFromFloat(initial)).
		Round(2).
		InexactFloat64()
}
