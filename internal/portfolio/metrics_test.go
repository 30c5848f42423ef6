package portfolio

import (
	"errors"
	"math"
	"testing"

	"stockadvisor/internal/market"
)

func TestRealizedMetricsRandomWalk(t *testing.T) {
	table := syntheticTable([]string{"AAPL", "MSFT", "JNJ"}, 300, 61)
	weights := map[string]float64{"AAPL": 0.4, "MSFT": 0.4, "JNJ": 0.2}

	m, err := RealizedMetrics(table, weights, RiskFreeRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.MaxDrawdown > 0 {
		t.Errorf("max drawdown must be <= 0, got %f", m.MaxDrawdown)
	}
	if m.RealizedVolatility <= 0 {
		t.Errorf("volatility must be positive for a non-constant series, got %f", m.RealizedVolatility)
	}
	wantSharpe := round4((m.RealizedAnnualReturn - RiskFreeRate) / m.RealizedVolatility)
	if math.Abs(m.RealizedSharpe-wantSharpe) > 2e-4 {
		t.Errorf("sharpe %f inconsistent with return/vol (want ~%f)", m.RealizedSharpe, wantSharpe)
	}
}

func TestRealizedMetricsDropsMissingTickerWithoutRenormalizing(t *testing.T) {
	table := syntheticTable([]string{"AAPL", "MSFT"}, 300, 67)

	full, err := RealizedMetrics(table, map[string]float64{"AAPL": 0.5, "FAKE": 0.3, "MSFT": 0.2}, RiskFreeRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Same computation without the unknown ticker: identical results, since
	// the surviving weights are used as-is rather than rescaled to sum to 1.
	partial, err := RealizedMetrics(table, map[string]float64{"AAPL": 0.5, "MSFT": 0.2}, RiskFreeRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if full.RealizedAnnualReturn != partial.RealizedAnnualReturn {
		t.Errorf("return changed when unknown ticker dropped: %f != %f",
			full.RealizedAnnualReturn, partial.RealizedAnnualReturn)
	}
	if full.RealizedVolatility != partial.RealizedVolatility {
		t.Errorf("volatility changed when unknown ticker dropped: %f != %f",
			full.RealizedVolatility, partial.RealizedVolatility)
	}
}

func TestRealizedMetricsZeroVolatility(t *testing.T) {
	dates := businessDays(50)
	flat := make([]float64, 50)
	for i := range flat {
		flat[i] = 100
	}
	table := market.NewComplete(dates, map[string][]float64{"FLAT": flat})

	m, err := RealizedMetrics(table, map[string]float64{"FLAT": 1.0}, RiskFreeRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.RealizedVolatility != 0 {
		t.Errorf("expected zero volatility, got %f", m.RealizedVolatility)
	}
	if m.RealizedSharpe != 0 {
		t.Errorf("sharpe must be 0 on zero volatility, got %f", m.RealizedSharpe)
	}
	if m.MaxDrawdown != 0 {
		t.Errorf("expected zero drawdown, got %f", m.MaxDrawdown)
	}
}

func TestRealizedMetricsNoOverlap(t *testing.T) {
	table := syntheticTable([]string{"AAPL"}, 100, 71)

	_, err := RealizedMetrics(table, map[string]float64{"FAKE": 1.0}, RiskFreeRate)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}
