// Package features derives the per-ticker feature vectors used for
// clustering and similarity lookups: momentum, volatility and RSI from
// price history, merged with fetched fundamentals, median-imputed and
// standardized.
package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"stockadvisor/internal/market"
)

const tradingDays = 252

// minObservations is the shortest price history a ticker needs before its
// technical features are considered meaningful.
const minObservations = 60

// Technical holds one ticker's technical features. Momentum fields are nil
// when the history is too short for their lookback.
type Technical struct {
	Momentum3M *float64
	Momentum6M *float64
	Volatility float64
	RSI        float64
}

// ComputeTechnical computes technical features per ticker. Tickers with
// fewer than 60 price observations are skipped entirely.
func ComputeTechnical(prices *market.PriceTable) map[string]Technical {
	out := make(map[string]Technical, prices.NumAssets())
	for _, tk := range prices.Tickers() {
		closes := prices.Column(tk)
		if len(closes) < minObservations {
			continue
		}
		rets := make([]float64, len(closes)-1)
		for i := 1; i < len(closes); i++ {
			rets[i-1] = closes[i]/closes[i-1] - 1
		}

		t := Technical{
			Volatility: stat.StdDev(rets, nil) * math.Sqrt(tradingDays),
			RSI:        rsi(closes, 14),
		}
		if m, ok := lagReturn(closes, 63); ok {
			t.Momentum3M = &m
		}
		if m, ok := lagReturn(closes, 126); ok {
			t.Momentum6M = &m
		}
		out[tk] = t
	}
	return out
}

// lagReturn is the most recent over-the-lag return, e.g. lag 63 for a
// 3-month momentum at 21 trading days/month.
func lagReturn(closes []float64, lag int) (float64, bool) {
	if len(closes) <= lag {
		return 0, false
	}
	base := closes[len(closes)-1-lag]
	if base == 0 {
		return 0, false
	}
	return closes[len(closes)-1]/base - 1, true
}

// rsi computes the relative strength index from simple averages of the
// trailing window's gains and losses.
func rsi(closes []float64, window int) float64 {
	if len(closes) < window+1 {
		return 50
	}
	var gain, loss float64
	for i := len(closes) - window; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}
