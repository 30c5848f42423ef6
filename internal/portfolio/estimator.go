package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"stockadvisor/internal/market"
)

// Estimate derives the annualized expected-return vector and sample
// covariance matrix from a complete price window (no missing cells; use
// DropMissing first). Deliberately the simplest unbiased estimator: daily
// arithmetic returns, mean scaled by 252, covariance with n-1 divisor. No
// shrinkage or factor structure.
func Estimate(prices *market.PriceTable) (mu []float64, sigma *mat.SymDense, err error) {
	n := prices.NumAssets()
	rows := prices.Len()
	if n == 0 || rows < 2 {
		return nil, nil, fmt.Errorf("estimate: %d rows, %d assets: %w", rows, n, ErrInsufficientData)
	}

	// Daily returns, one row per day transition.
	ret := mat.NewDense(rows-1, n, nil)
	for r := 1; r < rows; r++ {
		for c := 0; c < n; c++ {
			prev := prices.Price(r-1, c)
			if prev == 0 {
				return nil, nil, fmt.Errorf("estimate: zero price for %s: %w", prices.Tickers()[c], ErrInsufficientData)
			}
			ret.Set(r-1, c, prices.Price(r, c)/prev-1)
		}
	}

	mu = make([]float64, n)
	for c := 0; c < n; c++ {
		mu[c] = stat.Mean(mat.Col(nil, c, ret), nil) * TradingDays
	}

	sigma = mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(sigma, ret, nil)
	sigma.ScaleSym(TradingDays, sigma)
	return mu, sigma, nil
}

// performance computes the annual return, volatility and Sharpe ratio of a
// weight vector against estimated moments. Sharpe is 0 when volatility is 0.
func performance(w, mu []float64, sigma *mat.SymDense) (ret, vol, sharpe float64) {
	n := len(w)
	for i := 0; i < n; i++ {
		ret += w[i] * mu[i]
	}
	variance := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			variance += w[i] * w[j] * sigma.At(i, j)
		}
	}
	if variance > 0 {
		vol = math.Sqrt(variance)
	}
	if vol > 0 {
		sharpe = (ret - RiskFreeRate) / vol
	}
	return ret, vol, sharpe
}
