package features

import (
	"math"
	"testing"
	"time"

	"stockadvisor/internal/market"
)

func priceTable(tickers map[string][]float64, days int) *market.PriceTable {
	dates := make([]time.Time, days)
	d := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, 1)
		}
		dates[i] = d
		d = d.AddDate(0, 0, 1)
	}
	return market.NewComplete(dates, tickers)
}

func risingSeries(n int, step float64) []float64 {
	out := make([]float64, n)
	price := 100.0
	for i := range out {
		out[i] = price
		price += step
	}
	return out
}

func TestComputeTechnicalSkipsShortHistory(t *testing.T) {
	table := priceTable(map[string][]float64{
		"LONG":  risingSeries(200, 0.5),
		"SHORT": risingSeries(30, 0.5),
	}, 200)
	// SHORT only has 30 valid rows; the rest of its column is missing.
	feats := ComputeTechnical(table.Select([]string{"LONG"}))
	if _, ok := feats["LONG"]; !ok {
		t.Fatal("expected features for LONG")
	}

	short := priceTable(map[string][]float64{"SHORT": risingSeries(30, 0.5)}, 30)
	if feats := ComputeTechnical(short); len(feats) != 0 {
		t.Errorf("expected no features for 30-day history, got %d", len(feats))
	}
}

func TestComputeTechnicalMonotonicSeries(t *testing.T) {
	table := priceTable(map[string][]float64{"UP": risingSeries(200, 1.0)}, 200)

	feats := ComputeTechnical(table)
	up, ok := feats["UP"]
	if !ok {
		t.Fatal("expected features for UP")
	}
	if up.RSI != 100 {
		t.Errorf("strictly rising series should have RSI 100, got %f", up.RSI)
	}
	if up.Momentum3M == nil || *up.Momentum3M <= 0 {
		t.Error("expected positive 3m momentum")
	}
	if up.Momentum6M == nil || *up.Momentum6M <= *up.Momentum3M {
		t.Error("6m momentum should exceed 3m on a steadily rising series")
	}
	if up.Volatility <= 0 {
		t.Errorf("expected positive volatility, got %f", up.Volatility)
	}
}

func TestMergeInnerJoin(t *testing.T) {
	beta := 1.1
	fundamentals := []market.Fundamentals{
		{Ticker: "AAPL", Sector: "Technology", Beta: &beta},
		{Ticker: "NOPRICES", Sector: "Energy"},
	}
	technical := map[string]Technical{
		"AAPL":   {Volatility: 0.2, RSI: 55},
		"NOFUND": {Volatility: 0.3, RSI: 45},
	}

	rows := Merge(fundamentals, technical)
	if len(rows) != 1 {
		t.Fatalf("expected 1 merged row, got %d", len(rows))
	}
	if rows[0].Ticker != "AAPL" || rows[0].Sector != "Technology" {
		t.Errorf("unexpected row: %+v", rows[0])
	}
	if len(rows[0].Raw) != len(Columns) {
		t.Errorf("expected %d raw values, got %d", len(Columns), len(rows[0].Raw))
	}
}

func TestScaleImputesAndStandardizes(t *testing.T) {
	v := func(x float64) *float64 { return &x }
	rows := []Row{
		{Ticker: "A", Raw: make([]*float64, len(Columns))},
		{Ticker: "B", Raw: make([]*float64, len(Columns))},
		{Ticker: "C", Raw: make([]*float64, len(Columns))},
	}
	// First column has a missing value; remaining columns stay all-nil and
	// must scale to zeros instead of NaN.
	rows[0].Raw[0] = v(10)
	rows[1].Raw[0] = nil
	rows[2].Raw[0] = v(30)

	scaled, err := Scale(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rn, cn := scaled.Dims()
	if rn != 3 || cn != len(Columns) {
		t.Fatalf("unexpected dims %dx%d", rn, cn)
	}

	// Column 0: values 10, 20 (imputed median), 30 -> mean 20, symmetric.
	if got := scaled.At(1, 0); math.Abs(got) > 1e-12 {
		t.Errorf("imputed middle value should scale to 0, got %f", got)
	}
	if scaled.At(0, 0) >= 0 || scaled.At(2, 0) <= 0 {
		t.Error("scaled column lost ordering")
	}
	var colMean float64
	for r := 0; r < 3; r++ {
		colMean += scaled.At(r, 0)
	}
	if math.Abs(colMean) > 1e-9 {
		t.Errorf("scaled column mean %f != 0", colMean)
	}

	for c := 1; c < cn; c++ {
		for r := 0; r < rn; r++ {
			if got := scaled.At(r, c); got != 0 || math.IsNaN(got) {
				t.Fatalf("all-missing column %d should scale to zeros, got %f", c, got)
			}
		}
	}
}

func TestScaleEmpty(t *testing.T) {
	if _, err := Scale(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}
