// Package portfolio implements mean-variance portfolio construction:
// return/risk estimation from price history, constrained weight
// optimization with a tiered fallback ladder, walk-forward backtesting
// against an equal-weight baseline, and realized performance metrics.
//
// Every operation is a pure function of its inputs; the package holds no
// state and is safe for concurrent use.
package portfolio

import (
	"errors"
	"math"
)

const (
	// RiskFreeRate is the fixed annual risk-free rate used for Sharpe ratios.
	RiskFreeRate = 0.05
	// TradingDays is the annualization factor for daily returns.
	TradingDays = 252
	// TradingDaysPerMonth approximates one month of business days.
	TradingDaysPerMonth = 21
)

var (
	// ErrInsufficientData marks inputs with too few usable rows or windows.
	ErrInsufficientData = errors.New("insufficient price data")
	// ErrInfeasible marks an objective/bounds combination with no solution.
	ErrInfeasible = errors.New("optimization infeasible")
)

// RiskTier is the investor risk preference. It selects both the per-asset
// weight bound and the optimization objective.
type RiskTier string

const (
	Conservative RiskTier = "conservative"
	Moderate     RiskTier = "moderate"
	Aggressive   RiskTier = "aggressive"
)

// Bound returns the tier's per-asset upper weight bound. Unknown tiers
// degrade to the moderate bound rather than failing.
func (r RiskTier) Bound() float64 {
	switch r {
	case Conservative:
		return 0.10
	case Aggressive:
		return 0.35
	default:
		return 0.20
	}
}

// Valid reports whether the tier is one of the three named values.
// The core never requires this; the API boundary does.
func (r RiskTier) Valid() bool {
	return r == Conservative || r == Moderate || r == Aggressive
}

// Attempt names the fallback-ladder rung that produced a solution.
type Attempt string

const (
	// AttemptRequested: the requested objective under the tier's bounds.
	AttemptRequested Attempt = "requested"
	// AttemptMinVolFallback: minimum volatility under the tier's bounds.
	AttemptMinVolFallback Attempt = "minvol_fallback"
	// AttemptRelaxedBounds: minimum volatility with bounds relaxed to [0, 1].
	AttemptRelaxedBounds Attempt = "relaxed_bounds"
)

// Result is a completed optimization. Weights are cleaned (entries at or
// below 0.01 dropped); the performance triple is computed from the raw
// solution before truncation. All numbers are rounded to 4 decimals.
type Result struct {
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
	Attempt        Attempt            `json:"attempt"`
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
