package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"stockadvisor/internal/market"
)

// Metrics is the realized performance of a fixed weight vector over a
// historical window, for comparison against the optimizer's in-sample
// predictions.
type Metrics struct {
	RealizedAnnualReturn float64 `json:"realized_annual_return"`
	RealizedVolatility   float64 `json:"realized_volatility"`
	RealizedSharpe       float64 `json:"realized_sharpe"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	TotalReturn          float64 `json:"total_return"`
}

// RealizedMetrics scores a weight vector against actual price history.
// Tickers missing from the price table are dropped without renormalizing
// the remaining weights, so the result is biased low when dropped tickers
// carried real weight; callers comparing against predictions rely on that
// behavior staying stable. Sharpe is 0 on a zero-volatility window; max
// drawdown is computed on cumulative summed returns and is always <= 0.
func RealizedMetrics(prices *market.PriceTable, weights map[string]float64, riskFreeRate float64) (*Metrics, error) {
	keep := make([]string, 0, len(weights))
	for _, tk := range prices.Tickers() {
		if _, ok := weights[tk]; ok {
			keep = append(keep, tk)
		}
	}
	p := prices.Select(keep).DropMissing()
	if p.NumAssets() == 0 || p.Len() < 2 {
		return nil, fmt.Errorf("metrics: no overlapping history for weighted tickers: %w", ErrInsufficientData)
	}

	tickers := p.Tickers()
	port := make([]float64, p.Len()-1)
	for r := 1; r < p.Len(); r++ {
		var v float64
		for c, tk := range tickers {
			v += weights[tk] * (p.Price(r, c)/p.Price(r-1, c) - 1)
		}
		port[r-1] = v
	}

	annReturn := stat.Mean(port, nil) * TradingDays
	annVol := stat.StdDev(port, nil) * math.Sqrt(TradingDays)
	sharpe := 0.0
	if annVol > 0 {
		sharpe = (annReturn - riskFreeRate) / annVol
	}

	var cum, runMax, maxDD, total float64
	runMax = math.Inf(-1)
	for _, r := range port {
		cum += r
		total += r
		if cum > runMax {
			runMax = cum
		}
		if dd := cum - runMax; dd < maxDD {
			maxDD = dd
		}
	}

	return &Metrics{
		RealizedAnnualReturn: round4(annReturn),
		RealizedVolatility:   round4(annVol),
		RealizedSharpe:       round4(sharpe),
		MaxDrawdown:          round4(maxDD),
		TotalReturn:          round4(total),
	}, nil
}
