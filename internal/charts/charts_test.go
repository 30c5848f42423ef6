package charts

import (
	"bytes"
	"testing"

	"stockadvisor/internal/portfolio"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func TestAllocationRendersPNG(t *testing.T) {
	res := &portfolio.Result{
		Weights:        map[string]float64{"AAPL": 0.4, "MSFT": 0.35, "XOM": 0.25},
		ExpectedReturn: 0.12,
		Volatility:     0.18,
		SharpeRatio:    0.39,
	}
	buf, err := Allocation(res)
	if err != nil {
		t.Fatalf("allocation: %v", err)
	}
	if !bytes.HasPrefix(buf, pngHeader) {
		t.Fatalf("output is not a PNG, first bytes %v", buf[:4])
	}
}

func TestAllocationRejectsEmptyWeights(t *testing.T) {
	if _, err := Allocation(&portfolio.Result{}); err == nil {
		t.Fatal("expected error for empty weights")
	}
}

func TestBacktestCurveRendersPNG(t *testing.T) {
	report := &portfolio.BacktestReport{
		Summary: portfolio.BacktestSummary{
			PeriodsTested:     2,
			AvgOutperformance: 0.004,
			WinRateVsEqual:    0.5,
		},
		Periods: []portfolio.PeriodRecord{
			{PeriodStart: "2023-01-03", PeriodEnd: "2023-04-03", OptimizedReturn: 0.05, EqualWeightReturn: 0.04},
			{PeriodStart: "2023-04-03", PeriodEnd: "2023-07-03", OptimizedReturn: -0.01, EqualWeightReturn: 0.002},
		},
	}
	buf, err := BacktestCurve(report)
	if err != nil {
		t.Fatalf("backtest curve: %v", err)
	}
	if !bytes.HasPrefix(buf, pngHeader) {
		t.Fatal("output is not a PNG")
	}
}

func TestBacktestCurveRejectsEmptyReport(t *testing.T) {
	if _, err := BacktestCurve(&portfolio.BacktestReport{}); err == nil {
		t.Fatal("expected error for empty report")
	}
}
