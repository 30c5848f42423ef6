package summary

import (
	"strings"
	"testing"

	"stockadvisor/internal/portfolio"
	"stockadvisor/internal/recommend"
)

func TestSimilarPrompt(t *testing.T) {
	hits := []recommend.SimilarStock{
		{Ticker: "MSFT", Sector: "Technology", Similarity: 0.912, Beta: 1.1, Momentum6M: 0.15, Volatility: 0.22},
		{Ticker: "GOOGL", Sector: "Technology", Similarity: 0.87, Beta: 1.05, Momentum6M: 0.08, Volatility: 0.25},
	}
	p := similarPrompt("AAPL", hits)
	for _, want := range []string{"similar to AAPL", "MSFT (Technology)", "similarity 91.2%", "beta 1.10", "6m momentum 15.0%", "GOOGL"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestGapsPrompt(t *testing.T) {
	picks := []recommend.GapPick{
		{Ticker: "XOM", Sector: "Energy", Correlation: 0.123},
		{Ticker: "JNJ", Sector: "Healthcare", Correlation: 0.31},
	}
	p := gapsPrompt([]string{"AAPL", "MSFT"}, picks)
	for _, want := range []string{"portfolio of: AAPL, MSFT", "XOM (Energy): correlation 0.123", "JNJ (Healthcare)"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestOptimizePromptOrdersWeightsDescending(t *testing.T) {
	res := &portfolio.Result{
		Weights:        map[string]float64{"AAPL": 0.2, "MSFT": 0.5, "XOM": 0.3},
		ExpectedReturn: 0.12,
		Volatility:     0.18,
		SharpeRatio:    0.39,
	}
	p := optimizePrompt([]string{"AAPL", "MSFT", "XOM"}, portfolio.Moderate, res)
	for _, want := range []string{"a moderate risk portfolio", "MSFT: 50.0%", "Expected Annual Return: 12.0%", "Sharpe Ratio: 0.39"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	if strings.Index(p, "MSFT: 50.0%") > strings.Index(p, "XOM: 30.0%") {
		t.Error("weights not ordered largest first")
	}
}

func TestSortedWeightTickers(t *testing.T) {
	got := sortedWeightTickers(map[string]float64{"B": 0.2, "A": 0.2, "C": 0.6})
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
