package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// yahooChartResp mirrors the Yahoo v8 chart response (trimmed to the
// fields we read).
type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Adjclose []struct {
					Adjclose []float64 `json:"adjclose"`
				} `json:"adjclose"`
				Quote []struct {
					Close []float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// yahooSummaryResp mirrors the Yahoo v10 quoteSummary response, trimmed to
// the summaryDetail/defaultKeyStatistics/financialData fields we use for
// fundamentals.
type yahooSummaryResp struct {
	QuoteSummary struct {
		Result []struct {
			SummaryProfile struct {
				Sector string `json:"sector"`
			} `json:"summaryProfile"`
			SummaryDetail struct {
				TrailingPE    rawValue `json:"trailingPE"`
				PriceToBook   rawValue `json:"priceToBook"`
				DividendYield rawValue `json:"dividendYield"`
				Beta          rawValue `json:"beta"`
				MarketCap     rawValue `json:"marketCap"`
			} `json:"summaryDetail"`
			FinancialData struct {
				ReturnOnEquity rawValue `json:"returnOnEquity"`
				DebtToEquity   rawValue `json:"debtToEquity"`
				RevenueGrowth  rawValue `json:"revenueGrowth"`
			} `json:"financialData"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"quoteSummary"`
}

// rawValue is Yahoo's {raw: <number>} wrapper. Absent fields unmarshal to
// a nil pointer, which we keep as "missing" rather than a NaN sentinel.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

// YahooClient fetches daily price history and fundamentals from the Yahoo
// Finance JSON endpoints. Requests rotate across both query hosts and back
// off on 429s.
type YahooClient struct {
	httpClient *http.Client
}

// NewYahooClient returns a client with a sane request timeout.
func NewYahooClient() *YahooClient {
	return &YahooClient{httpClient: &http.Client{Timeout: 20 * time.Second}}
}

var yahooHosts = []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"}

var yahooBackoffs = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// FetchDaily fetches the ticker's daily adjusted close series over the
// given range (e.g. "2y").
func (y *YahooClient) FetchDaily(ctx context.Context, ticker, rangeParam string) (Series, error) {
	var yc yahooChartResp
	path := fmt.Sprintf("/v8/finance/chart/%s?range=%s&interval=1d&events=div,splits", ticker, rangeParam)
	if err := y.getJSON(ctx, path, ticker, &yc); err != nil {
		return Series{}, err
	}
	if len(yc.Chart.Result) == 0 {
		return Series{}, fmt.Errorf("yahoo: no chart data for %s", ticker)
	}
	res := yc.Chart.Result[0]

	closes := []float64(nil)
	if len(res.Indicators.Adjclose) > 0 {
		closes = res.Indicators.Adjclose[0].Adjclose
	} else if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}
	if len(res.Timestamp) == 0 || len(closes) == 0 {
		return Series{}, fmt.Errorf("yahoo: empty bars for %s", ticker)
	}

	s := Series{Ticker: ticker}
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] <= 0 {
			continue
		}
		s.Timestamps = append(s.Timestamps, time.Unix(ts, 0).UTC())
		s.Closes = append(s.Closes, closes[i])
	}
	if len(s.Closes) == 0 {
		return Series{}, fmt.Errorf("yahoo: no valid closes for %s", ticker)
	}
	s.Timestamps, s.Closes = filterOutliers(s.Timestamps, s.Closes, 5.0, 30)
	return s, nil
}

// FetchFundamentals fetches the fundamental snapshot for one ticker.
// Fields Yahoo does not report stay nil.
func (y *YahooClient) FetchFundamentals(ctx context.Context, ticker string) (Fundamentals, error) {
	var ys yahooSummaryResp
	path := fmt.Sprintf("/v10/finance/quoteSummary/%s?modules=summaryProfile,summaryDetail,financialData", ticker)
	if err := y.getJSON(ctx, path, ticker, &ys); err != nil {
		return Fundamentals{}, err
	}
	if len(ys.QuoteSummary.Result) == 0 {
		return Fundamentals{}, fmt.Errorf("yahoo: no summary data for %s", ticker)
	}
	res := ys.QuoteSummary.Result[0]

	sector := res.SummaryProfile.Sector
	if sector == "" {
		sector = "Unknown"
	}
	return Fundamentals{
		Ticker:        ticker,
		Sector:        sector,
		PERatio:       res.SummaryDetail.TrailingPE.Raw,
		PBRatio:       res.SummaryDetail.PriceToBook.Raw,
		ROE:           res.FinancialData.ReturnOnEquity.Raw,
		DebtToEquity:  res.FinancialData.DebtToEquity.Raw,
		RevenueGrowth: res.FinancialData.RevenueGrowth.Raw,
		DividendYield: res.SummaryDetail.DividendYield.Raw,
		Beta:          res.SummaryDetail.Beta.Raw,
		MarketCap:     res.SummaryDetail.MarketCap.Raw,
	}, nil
}

func (y *YahooClient) getJSON(ctx context.Context, path, ticker string, out any) error {
	var lastErr error
	for attempt := 0; attempt < len(yahooBackoffs)+1; attempt++ {
		for _, host := range yahooHosts {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host+path, nil)
			if err != nil {
				return err
			}
			req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
			req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
			req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s", strings.ToUpper(ticker)))

			resp, err := y.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				lastErr = fmt.Errorf("read yahoo response: %w", readErr)
				continue
			}
			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = fmt.Errorf("yahoo %s returned 429", host)
				continue
			}
			if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("yahoo %s returned %d: %s", host, resp.StatusCode, preview(body))
				continue
			}
			if strings.HasPrefix(string(body), "<") {
				lastErr = errors.New("yahoo returned non-json body")
				continue
			}
			if err := json.Unmarshal(body, out); err != nil {
				lastErr = fmt.Errorf("parse yahoo json: %v; body: %s", err, preview(body))
				continue
			}
			return nil
		}
		if attempt < len(yahooBackoffs) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(yahooBackoffs[attempt]):
			}
		}
	}
	return lastErr
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}
