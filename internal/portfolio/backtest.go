package portfolio

import (
	"fmt"
	"log"

	"stockadvisor/internal/market"
)

// PeriodRecord is one walk-forward step: the allocation was fitted on the
// training window ending at PeriodStart and scored on the following test
// window. Immutable once appended.
type PeriodRecord struct {
	PeriodStart       string  `json:"period_start"`
	PeriodEnd         string  `json:"period_end"`
	OptimizedReturn   float64 `json:"optimized_return"`
	EqualWeightReturn float64 `json:"equal_weight_return"`
	Outperformance    float64 `json:"outperformance"`
	PredictedSharpe   float64 `json:"predicted_sharpe"`
	TopWeight         string  `json:"top_weight"`
}

// BacktestSummary aggregates all period records.
type BacktestSummary struct {
	PeriodsTested        int     `json:"periods_tested"`
	AvgOptimizedReturn   float64 `json:"avg_optimized_return"`
	AvgEqualWeightReturn float64 `json:"avg_equal_weight_return"`
	AvgOutperformance    float64 `json:"avg_outperformance"`
	WinRateVsEqual       float64 `json:"win_rate_vs_equal"`
	BestPeriod           string  `json:"best_period"`
	WorstPeriod          string  `json:"worst_period"`
}

// BacktestMethod documents the validation scheme used for a report.
type BacktestMethod struct {
	Method      string `json:"method"`
	TrainMonths int    `json:"train_months"`
	TestMonths  int    `json:"test_months"`
	Note        string `json:"note"`
}

// BacktestReport is the full walk-forward validation output.
type BacktestReport struct {
	Summary BacktestSummary `json:"summary"`
	Periods []PeriodRecord  `json:"periods"`
	Method  BacktestMethod  `json:"method"`
}

// Backtest walk-forward-validates the optimizer against an equal-weight
// baseline. Months convert to trading days at 21 days/month. Each step
// trains only on the window strictly before its test slice, so no fit
// ever sees data from the period it is scored on. A step whose
// optimization fails is skipped and the walk continues; if no step
// completes, ErrInsufficientData is returned.
func Backtest(prices *market.PriceTable, tickers []string, tier RiskTier, trainMonths, testMonths int) (*BacktestReport, error) {
	if trainMonths <= 0 {
		trainMonths = 12
	}
	if testMonths <= 0 {
		testMonths = 3
	}

	p := prices.Select(tickers).DropMissing()
	valid := p.Tickers()
	trainDays := trainMonths * TradingDaysPerMonth
	testDays := testMonths * TradingDaysPerMonth

	log.Printf("backtest: walk-forward over %d tickers, %d rows, train=%dd test=%dd",
		len(valid), p.Len(), trainDays, testDays)

	var periods []PeriodRecord
	for i := trainDays; i+testDays < p.Len(); i += testDays {
		train := p.Slice(i-trainDays, i)
		test := p.Slice(i, i+testDays)

		res, err := Optimize(valid, train, tier)
		if err != nil {
			log.Printf("backtest: optimization failed at step %d: %v", i, err)
			continue
		}

		var optRet float64
		sliceRets := make([]float64, 0, len(valid))
		for c, tk := range valid {
			r := test.Price(test.Len()-1, c)/test.Price(0, c) - 1
			sliceRets = append(sliceRets, r)
			optRet += res.Weights[tk] * r
		}

		rec := PeriodRecord{
			PeriodStart:       p.Date(i).Format("2006-01-02"),
			PeriodEnd:         p.Date(i + testDays).Format("2006-01-02"),
			OptimizedReturn:   round4(optRet),
			EqualWeightReturn: round4(mean(sliceRets)),
			PredictedSharpe:   res.SharpeRatio,
			TopWeight:         topWeight(valid, res.Weights),
		}
		rec.Outperformance = round4(rec.OptimizedReturn - rec.EqualWeightReturn)
		periods = append(periods, rec)
	}

	if len(periods) == 0 {
		return nil, fmt.Errorf("no complete walk-forward windows (%d rows, need > %d): %w",
			p.Len(), trainDays+testDays, ErrInsufficientData)
	}

	return &BacktestReport{
		Summary: summarize(periods),
		Periods: periods,
		Method: BacktestMethod{
			Method:      "walk_forward",
			TrainMonths: trainMonths,
			TestMonths:  testMonths,
			Note:        "Walk-forward prevents lookahead bias. A simple hold-out split would overestimate performance.",
		},
	}, nil
}

func summarize(periods []PeriodRecord) BacktestSummary {
	var optSum, eqSum, outSum float64
	wins := 0
	best, worst := 0, 0
	for i, rec := range periods {
		optSum += rec.OptimizedReturn
		eqSum += rec.EqualWeightReturn
		outSum += rec.Outperformance
		if rec.Outperformance > 0 {
			wins++
		}
		if rec.OptimizedReturn > periods[best].OptimizedReturn {
			best = i
		}
		if rec.OptimizedReturn < periods[worst].OptimizedReturn {
			worst = i
		}
	}
	n := float64(len(periods))
	return BacktestSummary{
		PeriodsTested:        len(periods),
		AvgOptimizedReturn:   round4(optSum / n),
		AvgEqualWeightReturn: round4(eqSum / n),
		AvgOutperformance:    round4(outSum / n),
		WinRateVsEqual:       round4(float64(wins) / n),
		BestPeriod:           periods[best].PeriodStart,
		WorstPeriod:          periods[worst].PeriodStart,
	}
}

// topWeight returns the ticker with the largest cleaned weight, ties
// resolved by column order. Empty weights yield "".
func topWeight(tickers []string, weights map[string]float64) string {
	top := ""
	topW := 0.0
	for _, tk := range tickers {
		if w, ok := weights[tk]; ok && w > topW {
			top, topW = tk, w
		}
	}
	return top
}
