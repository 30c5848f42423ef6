package portfolio

import (
	"fmt"
	"math/rand"
	"time"

	"stockadvisor/internal/market"
)

// syntheticTable builds a deterministic geometric-random-walk price table.
// Asset i drifts at baseDrift+i*driftStep with daily noise baseVol+i*volStep,
// so later columns are both riskier and higher-returning.
func syntheticTable(tickers []string, days int, seed int64) *market.PriceTable {
	return syntheticTableWith(tickers, days, seed, 0.0005, 0, 0.02, 0)
}

func syntheticTableWith(tickers []string, days int, seed int64, baseDrift, driftStep, baseVol, volStep float64) *market.PriceTable {
	rng := rand.New(rand.NewSource(seed))
	dates := businessDays(days)
	prices := make(map[string][]float64, len(tickers))
	for i, tk := range tickers {
		drift := baseDrift + float64(i)*driftStep
		vol := baseVol + float64(i)*volStep
		price := 100 + rng.Float64()*400
		col := make([]float64, days)
		for d := 0; d < days; d++ {
			price *= 1 + drift + rng.NormFloat64()*vol
			col[d] = price
		}
		prices[tk] = col
	}
	return market.NewComplete(dates, prices)
}

func businessDays(n int) []time.Time {
	dates := make([]time.Time, 0, n)
	d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

func tickerNames(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("TK%02d", i)
	}
	return out
}
