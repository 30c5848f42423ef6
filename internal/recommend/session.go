// Package recommend prepares a ticker universe for similarity lookups,
// diversification-gap analysis and portfolio optimization. A Session is
// built once from fetched prices and fundamentals and then passed
// explicitly to callers; it is immutable after Build, so concurrent reads
// need no locking.
package recommend

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"stockadvisor/internal/features"
	"stockadvisor/internal/market"
	"stockadvisor/internal/portfolio"
)

// ErrUnknownTicker marks a lookup for a ticker outside the built universe.
var ErrUnknownTicker = errors.New("ticker not in universe")

// Session is the prepared universe state.
type Session struct {
	prices  *market.PriceTable
	rows    []features.Row
	labels  []string
	scaled  *mat.Dense
	sim     *mat.Dense
	index   map[string]int
	builtAt time.Time
}

// SimilarStock is one similarity lookup hit.
type SimilarStock struct {
	Ticker       string  `json:"ticker"`
	Sector       string  `json:"sector"`
	Similarity   float64 `json:"similarity"`
	Beta         float64 `json:"beta"`
	Momentum6M   float64 `json:"momentum_6m"`
	Volatility   float64 `json:"volatility"`
	ClusterLabel string  `json:"cluster_label"`
}

// GapPick is one diversification candidate: a universe ticker with low
// correlation to the caller's portfolio.
type GapPick struct {
	Ticker      string  `json:"ticker"`
	Sector      string  `json:"sector"`
	Correlation float64 `json:"correlation"`
}

// Build assembles a session: technical features from prices, an inner
// join with fundamentals, scaling, clustering and the similarity matrix.
func Build(prices *market.PriceTable, fundamentals []market.Fundamentals) (*Session, error) {
	technical := features.ComputeTechnical(prices)
	rows := features.Merge(fundamentals, technical)
	if len(rows) == 0 {
		return nil, fmt.Errorf("build session: no tickers with both prices and fundamentals")
	}

	scaled, err := features.Scale(rows)
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}

	assignments := kMeans(scaled, 5, 42)
	labels := make([]string, len(rows))
	for i, c := range assignments {
		labels[i] = clusterLabels[c%len(clusterLabels)]
	}

	index := make(map[string]int, len(rows))
	for i, row := range rows {
		index[row.Ticker] = i
	}

	log.Printf("recommend: session built with %d tickers, %d price rows", len(rows), prices.Len())
	return &Session{
		prices:  prices,
		rows:    rows,
		labels:  labels,
		scaled:  scaled,
		sim:     cosineSimilarity(scaled),
		index:   index,
		builtAt: time.Now(),
	}, nil
}

// Tickers returns the universe tickers in row order.
func (s *Session) Tickers() []string {
	out := make([]string, len(s.rows))
	for i, row := range s.rows {
		out[i] = row.Ticker
	}
	return out
}

// Prices returns the session's price table.
func (s *Session) Prices() *market.PriceTable { return s.prices }

// BuiltAt returns when the session was assembled.
func (s *Session) BuiltAt() time.Time { return s.builtAt }

// Size returns the number of tickers in the universe.
func (s *Session) Size() int { return len(s.rows) }

// Similar returns the topN most similar universe tickers by cosine
// similarity of scaled feature vectors, excluding the ticker itself.
func (s *Session) Similar(ticker string, topN int) ([]SimilarStock, error) {
	i, ok := s.index[ticker]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ticker, ErrUnknownTicker)
	}
	if topN <= 0 {
		topN = 5
	}

	type scored struct {
		row int
		sim float64
	}
	candidates := make([]scored, 0, len(s.rows)-1)
	for j := range s.rows {
		if j == i {
			continue
		}
		candidates = append(candidates, scored{j, s.sim.At(i, j)})
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].sim > candidates[b].sim })
	if topN < len(candidates) {
		candidates = candidates[:topN]
	}

	out := make([]SimilarStock, len(candidates))
	for k, c := range candidates {
		row := s.rows[c.row]
		out[k] = SimilarStock{
			Ticker:       row.Ticker,
			Sector:       row.Sector,
			Similarity:   math.Round(c.sim*1000) / 1000,
			Beta:         rawOrZero(row, "beta"),
			Momentum6M:   rawOrZero(row, "momentum_6m"),
			Volatility:   rawOrZero(row, "volatility"),
			ClusterLabel: s.labels[c.row],
		}
	}
	return out, nil
}

// Gaps ranks universe tickers outside the portfolio by how little their
// daily returns correlate with the portfolio's equal-weight daily return,
// ascending. Low correlation means a diversification gap candidate.
func (s *Session) Gaps(held []string, topN int) ([]GapPick, error) {
	if topN <= 0 {
		topN = 5
	}
	heldSet := make(map[string]bool, len(held))
	valid := make([]string, 0, len(held))
	for _, tk := range held {
		if s.prices.HasTicker(tk) && !heldSet[tk] {
			heldSet[tk] = true
			valid = append(valid, tk)
		}
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("gaps: no portfolio tickers with price history: %w", ErrUnknownTicker)
	}

	p := s.prices.DropMissing()
	if p.Len() < 3 {
		return nil, fmt.Errorf("gaps: %d complete price rows", p.Len())
	}
	portRets := equalWeightReturns(p, valid)

	type scored struct {
		row  int
		corr float64
	}
	var candidates []scored
	for j, row := range s.rows {
		if heldSet[row.Ticker] || !p.HasTicker(row.Ticker) {
			continue
		}
		rets := dailyReturns(p, row.Ticker)
		candidates = append(candidates, scored{j, stat.Correlation(rets, portRets, nil)})
	}
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].corr < candidates[b].corr })
	if topN < len(candidates) {
		candidates = candidates[:topN]
	}

	out := make([]GapPick, len(candidates))
	for k, c := range candidates {
		out[k] = GapPick{
			Ticker:      s.rows[c.row].Ticker,
			Sector:      s.rows[c.row].Sector,
			Correlation: math.Round(c.corr*1000) / 1000,
		}
	}
	return out, nil
}

// Optimize runs the allocator against the session's price history.
func (s *Session) Optimize(tickers []string, tier portfolio.RiskTier) (*portfolio.Result, error) {
	return portfolio.Optimize(tickers, s.prices, tier)
}

// Backtest runs the walk-forward harness against the session's history.
func (s *Session) Backtest(tickers []string, tier portfolio.RiskTier, trainMonths, testMonths int) (*portfolio.BacktestReport, error) {
	return portfolio.Backtest(s.prices, tickers, tier, trainMonths, testMonths)
}

// Metrics scores a fixed weight vector against the session's history.
func (s *Session) Metrics(weights map[string]float64) (*portfolio.Metrics, error) {
	return portfolio.RealizedMetrics(s.prices, weights, portfolio.RiskFreeRate)
}

func rawOrZero(row features.Row, column string) float64 {
	for c, name := range features.Columns {
		if name == column {
			if v := row.Raw[c]; v != nil {
				return *v
			}
			return 0
		}
	}
	return 0
}

// equalWeightReturns is the mean daily return across the given complete
// columns, one value per day transition.
func equalWeightReturns(p *market.PriceTable, tickers []string) []float64 {
	out := make([]float64, p.Len()-1)
	cols := make([]int, 0, len(tickers))
	for c, tk := range p.Tickers() {
		for _, want := range tickers {
			if tk == want {
				cols = append(cols, c)
				break
			}
		}
	}
	for r := 1; r < p.Len(); r++ {
		var sum float64
		for _, c := range cols {
			sum += p.Price(r, c)/p.Price(r-1, c) - 1
		}
		out[r-1] = sum / float64(len(cols))
	}
	return out
}

func dailyReturns(p *market.PriceTable, ticker string) []float64 {
	col := -1
	for c, tk := range p.Tickers() {
		if tk == ticker {
			col = c
			break
		}
	}
	out := make([]float64, p.Len()-1)
	for r := 1; r < p.Len(); r++ {
		out[r-1] = p.Price(r, col)/p.Price(r-1, col) - 1
	}
	return out
}
