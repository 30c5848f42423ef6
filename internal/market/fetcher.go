package market

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Fundamentals is one ticker's fundamental snapshot. Numeric fields the
// provider does not report are nil, not zero.
type Fundamentals struct {
	Ticker        string
	Sector        string
	PERatio       *float64
	PBRatio       *float64
	ROE           *float64
	DebtToEquity  *float64
	RevenueGrowth *float64
	DividendYield *float64
	Beta          *float64
	MarketCap     *float64
}

// Provider is the market-data source consumed by the fetcher. Satisfied by
// *YahooClient; tests substitute a stub.
type Provider interface {
	FetchDaily(ctx context.Context, ticker, rangeParam string) (Series, error)
	FetchFundamentals(ctx context.Context, ticker string) (Fundamentals, error)
}

// Fetcher assembles price tables and fundamentals for a ticker universe,
// fanning requests out with a bounded worker count. A failed ticker is
// logged and skipped; it never aborts the whole run.
type Fetcher struct {
	provider Provider
	workers  int
}

// NewFetcher wraps a provider. workers caps concurrent requests.
func NewFetcher(provider Provider, workers int) *Fetcher {
	if workers <= 0 {
		workers = 4
	}
	return &Fetcher{provider: provider, workers: workers}
}

// FetchPrices fetches daily price history for each ticker and merges the
// surviving series into one table. Errors only when no ticker succeeds.
func (f *Fetcher) FetchPrices(ctx context.Context, tickers []string, rangeParam string) (*PriceTable, error) {
	var mu sync.Mutex
	series := make([]Series, 0, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, ticker := range tickers {
		g.Go(func() error {
			s, err := f.provider.FetchDaily(ctx, ticker, rangeParam)
			if err != nil {
				log.Printf("fetch: prices %s failed: %v", ticker, err)
				return nil
			}
			mu.Lock()
			series = append(series, s)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("fetch: no price data for any of %d tickers", len(tickers))
	}

	// Restore request order; errgroup completion order is arbitrary.
	byTicker := make(map[string]Series, len(series))
	for _, s := range series {
		byTicker[s.Ticker] = s
	}
	ordered := make([]Series, 0, len(series))
	for _, ticker := range tickers {
		if s, ok := byTicker[ticker]; ok {
			ordered = append(ordered, s)
		}
	}
	return Merge(ordered), nil
}

// FetchFundamentals fetches fundamentals per ticker. Failed tickers are
// skipped; the result may cover fewer tickers than requested.
func (f *Fetcher) FetchFundamentals(ctx context.Context, tickers []string) ([]Fundamentals, error) {
	var mu sync.Mutex
	byTicker := make(map[string]Fundamentals, len(tickers))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, ticker := range tickers {
		g.Go(func() error {
			fu, err := f.provider.FetchFundamentals(ctx, ticker)
			if err != nil {
				log.Printf("fetch: fundamentals %s failed: %v", ticker, err)
				return nil
			}
			mu.Lock()
			byTicker[ticker] = fu
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Fundamentals, 0, len(byTicker))
	for _, ticker := range tickers {
		if fu, ok := byTicker[ticker]; ok {
			out = append(out, fu)
		}
	}
	return out, nil
}
