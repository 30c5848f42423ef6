package features

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"stockadvisor/internal/market"
)

// Columns is the feature-vector layout, fundamentals first, technicals
// last. Order is part of the scaled-matrix contract.
var Columns = []string{
	"pe_ratio", "pb_ratio", "roe", "debt_to_equity",
	"revenue_growth", "dividend_yield", "beta", "market_cap",
	"momentum_3m", "momentum_6m", "volatility", "rsi",
}

// Row is one ticker's merged feature vector. Raw entries are nil where the
// underlying datum is missing; Scale imputes them.
type Row struct {
	Ticker string
	Sector string
	Raw    []*float64
}

// Merge inner-joins fundamentals with technical features: only tickers
// present in both contribute a row. Row order follows the fundamentals
// slice for determinism.
func Merge(fundamentals []market.Fundamentals, technical map[string]Technical) []Row {
	rows := make([]Row, 0, len(fundamentals))
	for _, f := range fundamentals {
		t, ok := technical[f.Ticker]
		if !ok {
			continue
		}
		vol, rsiVal := t.Volatility, t.RSI
		rows = append(rows, Row{
			Ticker: f.Ticker,
			Sector: f.Sector,
			Raw: []*float64{
				f.PERatio, f.PBRatio, f.ROE, f.DebtToEquity,
				f.RevenueGrowth, f.DividendYield, f.Beta, f.MarketCap,
				t.Momentum3M, t.Momentum6M, &vol, &rsiVal,
			},
		})
	}
	return rows
}

// Scale imputes missing entries with the column median, then standardizes
// every column to zero mean and unit variance. A constant column scales to
// all zeros rather than dividing by zero. The returned matrix has one row
// per input row, columns ordered as Columns.
func Scale(rows []Row) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("scale: no feature rows")
	}
	n, m := len(rows), len(Columns)
	scaled := mat.NewDense(n, m, nil)

	for c := 0; c < m; c++ {
		present := make([]float64, 0, n)
		for _, row := range rows {
			if v := row.Raw[c]; v != nil {
				present = append(present, *v)
			}
		}
		med := median(present)

		col := make([]float64, n)
		for r, row := range rows {
			if v := row.Raw[c]; v != nil {
				col[r] = *v
			} else {
				col[r] = med
			}
		}

		mean, std := momentsPop(col)
		for r := range col {
			if std > 0 {
				scaled.Set(r, c, (col[r]-mean)/std)
			} else {
				scaled.Set(r, c, 0)
			}
		}
	}
	return scaled, nil
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// momentsPop returns the population mean and standard deviation, matching
// the usual standardization convention.
func momentsPop(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}
