package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"stockadvisor/internal/cache"
	"stockadvisor/internal/charts"
	"stockadvisor/internal/portfolio"
	"stockadvisor/internal/recommend"
)

type summarySimilarRequest struct {
	Ticker string `json:"ticker"`
	TopN   int    `json:"top_n"`
}

// Summary endpoints degrade rather than fail: when the language model is
// unreachable the numeric result already exists, so the response carries
// an apologetic summary with status 200.
func (s *Server) handleSummarySimilar(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	if s.narrator == nil {
		writeError(w, http.StatusServiceUnavailable, "summarizer not configured", "no API key set")
		return
	}
	var req summarySimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "malformed JSON body")
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "ticker is required")
		return
	}
	if req.TopN == 0 {
		req.TopN = 5
	}

	hits, err := sess.Similar(ticker, req.TopN)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown ticker", err.Error())
		return
	}
	text, err := s.narrator.Similar(r.Context(), ticker, hits)
	if err != nil {
		text = fmt.Sprintf("Summary unavailable: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func (s *Server) handleSummaryGaps(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	if s.narrator == nil {
		writeError(w, http.StatusServiceUnavailable, "summarizer not configured", "no API key set")
		return
	}
	var req gapsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "malformed JSON body")
		return
	}
	held := normalizeTickers(req.Portfolio)
	if len(held) < 1 || len(held) > 20 {
		writeError(w, http.StatusBadRequest, "invalid request", "portfolio must have between 1 and 20 tickers")
		return
	}
	if req.TopN == 0 {
		req.TopN = 5
	}
	if !s.checkUniverse(w, sess, held) {
		return
	}

	picks, err := sess.Gaps(held, req.TopN)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "gap analysis failed", err.Error())
		return
	}
	text, err := s.narrator.Gaps(r.Context(), held, picks)
	if err != nil {
		text = fmt.Sprintf("Summary unavailable: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

func (s *Server) handleSummaryOptimize(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	if s.narrator == nil {
		writeError(w, http.StatusServiceUnavailable, "summarizer not configured", "no API key set")
		return
	}
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "malformed JSON body")
		return
	}
	tickers, tier, ok := s.validateOptimizeArgs(w, sess, req.Tickers, req.Risk)
	if !ok {
		return
	}

	res, err := s.cachedOptimize(sess, tickers, tier)
	if err != nil {
		writeOptimizeError(w, err)
		return
	}
	text, err := s.narrator.Optimize(r.Context(), tickers, tier, res)
	if err != nil {
		text = fmt.Sprintf("Summary unavailable: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": text})
}

// handleChartAllocation renders the optimized allocation for
// ?tickers=AAPL,MSFT&risk=moderate as a PNG pie chart.
func (s *Server) handleChartAllocation(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	tickers, tier, ok := s.validateOptimizeArgs(w, sess, splitTickers(r.URL.Query().Get("tickers")), r.URL.Query().Get("risk"))
	if !ok {
		return
	}
	res, err := s.cachedOptimize(sess, tickers, tier)
	if err != nil {
		writeOptimizeError(w, err)
		return
	}
	img, err := charts.Allocation(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chart rendering failed", err.Error())
		return
	}
	writePNG(w, img)
}

// handleChartBacktest renders cumulative optimized vs equal-weight growth
// for ?tickers=...&risk=...&train_months=12&test_months=3 as a PNG.
func (s *Server) handleChartBacktest(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	tickers, tier, ok := s.validateOptimizeArgs(w, sess, splitTickers(r.URL.Query().Get("tickers")), r.URL.Query().Get("risk"))
	if !ok {
		return
	}
	trainMonths := queryInt(r, "train_months", 0)
	testMonths := queryInt(r, "test_months", 0)
	if trainMonths < 0 || testMonths < 0 {
		writeError(w, http.StatusBadRequest, "invalid request", "train_months and test_months must be positive")
		return
	}

	v, err := s.cache.Do(cache.Key("backtest", tickers, string(tier), trainMonths, testMonths), func() (any, error) {
		return sess.Backtest(tickers, tier, trainMonths, testMonths)
	})
	if err != nil {
		writeOptimizeError(w, err)
		return
	}
	img, err := charts.BacktestCurve(v.(*portfolio.BacktestReport))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "chart rendering failed", err.Error())
		return
	}
	writePNG(w, img)
}

func (s *Server) cachedOptimize(sess *recommend.Session, tickers []string, tier portfolio.RiskTier) (*portfolio.Result, error) {
	v, err := s.cache.Do(cache.Key("optimize", tickers, string(tier)), func() (any, error) {
		return sess.Optimize(tickers, tier)
	})
	if err != nil {
		return nil, err
	}
	return v.(*portfolio.Result), nil
}

func splitTickers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func writePNG(w http.ResponseWriter, img []byte) {
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		log.Printf("server: write png: %v", err)
	}
}
