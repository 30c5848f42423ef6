package portfolio

import (
	"errors"
	"math"
	"testing"
	"time"

	"stockadvisor/internal/market"
)

func TestEstimateKnownSeries(t *testing.T) {
	dates := businessDays(3)
	table := market.NewComplete(dates, map[string][]float64{
		"A": {100, 110, 121},
		"B": {100, 105, 110.25},
	})

	mu, sigma, err := Estimate(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both days return exactly 10% for A and 5% for B.
	wantA := 0.10 * TradingDays
	wantB := 0.05 * TradingDays
	if math.Abs(mu[0]-wantA) > 1e-9 {
		t.Errorf("mu[A]: expected %f, got %f", wantA, mu[0])
	}
	if math.Abs(mu[1]-wantB) > 1e-9 {
		t.Errorf("mu[B]: expected %f, got %f", wantB, mu[1])
	}

	// Constant returns have zero variance.
	if math.Abs(sigma.At(0, 0)) > 1e-9 {
		t.Errorf("expected zero variance for A, got %f", sigma.At(0, 0))
	}
	if math.Abs(sigma.At(0, 1)-sigma.At(1, 0)) > 1e-12 {
		t.Errorf("covariance matrix not symmetric: %f != %f", sigma.At(0, 1), sigma.At(1, 0))
	}
}

func TestEstimateCovarianceSymmetricAndAnnualized(t *testing.T) {
	table := syntheticTable(tickerNames(4), 300, 7)

	_, sigma, err := Estimate(table)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n, _ := sigma.Dims()
	for i := 0; i < n; i++ {
		if sigma.At(i, i) <= 0 {
			t.Errorf("variance of asset %d not positive: %f", i, sigma.At(i, i))
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(sigma.At(i, j)-sigma.At(j, i)) > 1e-12 {
				t.Errorf("asymmetry at (%d,%d)", i, j)
			}
		}
	}
	// Daily vol of ~2% annualizes to roughly 0.02^2*252 variance.
	want := 0.02 * 0.02 * TradingDays
	if sigma.At(0, 0) < want/3 || sigma.At(0, 0) > want*3 {
		t.Errorf("annualized variance out of expected range: got %f, want around %f", sigma.At(0, 0), want)
	}
}

func TestEstimateInsufficientData(t *testing.T) {
	cases := []struct {
		name string
		rows int
	}{
		{"empty", 0},
		{"single row", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dates := make([]time.Time, tc.rows)
			for i := range dates {
				dates[i] = time.Date(2023, 1, 2+i, 0, 0, 0, 0, time.UTC)
			}
			col := make([]float64, tc.rows)
			for i := range col {
				col[i] = 100
			}
			table := market.NewComplete(dates, map[string][]float64{"A": col})

			_, _, err := Estimate(table)
			if !errors.Is(err, ErrInsufficientData) {
				t.Fatalf("expected ErrInsufficientData, got %v", err)
			}
		})
	}
}
