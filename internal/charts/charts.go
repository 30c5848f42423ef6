// Package charts renders PNG visualizations of allocations and backtest
// results.
package charts

import (
	"fmt"
	"sort"

	charts "github.com/vicanso/go-charts/v2"

	"stockadvisor/internal/portfolio"
)

// Allocation renders a pie chart of an optimized weight vector.
func Allocation(res *portfolio.Result) ([]byte, error) {
	if len(res.Weights) == 0 {
		return nil, fmt.Errorf("allocation chart: no weights")
	}

	labels := make([]string, 0, len(res.Weights))
	for tk := range res.Weights {
		labels = append(labels, tk)
	}
	sort.Slice(labels, func(i, j int) bool {
		if res.Weights[labels[i]] != res.Weights[labels[j]] {
			return res.Weights[labels[i]] > res.Weights[labels[j]]
		}
		return labels[i] < labels[j]
	})
	values := make([]float64, len(labels))
	for i, tk := range labels {
		values[i] = res.Weights[tk]
		labels[i] = fmt.Sprintf("%s %.1f%%", tk, res.Weights[tk]*100)
	}

	title := fmt.Sprintf("Optimized Allocation\nReturn: %.1f%% | Vol: %.1f%% | Sharpe: %.2f",
		res.ExpectedReturn*100, res.Volatility*100, res.SharpeRatio)

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.LegendLabelsOptionFunc(labels),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("render allocation chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode allocation chart: %w", err)
	}
	return buf, nil
}

// BacktestCurve renders cumulative optimized vs equal-weight growth across
// backtest periods, starting both lines at 100.
func BacktestCurve(report *portfolio.BacktestReport) ([]byte, error) {
	if len(report.Periods) == 0 {
		return nil, fmt.Errorf("backtest chart: no periods")
	}

	n := len(report.Periods)
	optimized := make([]float64, n+1)
	equal := make([]float64, n+1)
	xLabels := make([]string, n+1)
	optimized[0], equal[0] = 100, 100
	xLabels[0] = report.Periods[0].PeriodStart
	for i, p := range report.Periods {
		optimized[i+1] = optimized[i] * (1 + p.OptimizedReturn)
		equal[i+1] = equal[i] * (1 + p.EqualWeightReturn)
		xLabels[i+1] = p.PeriodEnd
	}

	yMin, yMax := optimized[0], optimized[0]
	for i := range optimized {
		for _, v := range []float64{optimized[i], equal[i]} {
			if v < yMin {
				yMin = v
			}
			if v > yMax {
				yMax = v
			}
		}
	}
	padding := (yMax - yMin) * 0.05
	if padding == 0 {
		padding = yMax * 0.05
	}
	yMin -= padding
	yMax += padding

	title := fmt.Sprintf("Walk-Forward Backtest (%d periods)\nAvg Outperformance: %.2f%% | Win Rate: %.0f%%",
		report.Summary.PeriodsTested,
		report.Summary.AvgOutperformance*100,
		report.Summary.WinRateVsEqual*100)

	splitNum := 6
	if len(xLabels) <= 30 {
		splitNum = len(xLabels) / 3
		if splitNum < 3 {
			splitNum = 3
		}
	}

	p, err := charts.LineRender(
		[][]float64{optimized, equal},
		charts.TitleTextOptionFunc(title),
		charts.LegendLabelsOptionFunc([]string{"Optimized", "Equal Weight"}),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        xLabels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{
			Min:         &yMin,
			Max:         &yMax,
			DivideCount: 5,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return nil, fmt.Errorf("render backtest chart: %w", err)
	}
	buf, err := p.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode backtest chart: %w", err)
	}
	return buf, nil
}
