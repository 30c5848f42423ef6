// Package server exposes the recommender over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"stockadvisor/internal/cache"
	"stockadvisor/internal/portfolio"
	"stockadvisor/internal/recommend"
)

// Narrator produces plain-English summaries of analysis results.
// Satisfied by *summary.Summarizer; tests substitute a stub.
type Narrator interface {
	Similar(ctx context.Context, ticker string, hits []recommend.SimilarStock) (string, error)
	Gaps(ctx context.Context, held []string, picks []recommend.GapPick) (string, error)
	Optimize(ctx context.Context, tickers []string, tier portfolio.RiskTier, res *portfolio.Result) (string, error)
}

// UsageRecorder counts endpoint hits. Satisfied by *store.Store.
type UsageRecorder interface {
	CountUsage(endpoint string) error
}

// Server routes API requests against the current session. SwapSession
// replaces the session after a rebuild; requests in flight keep the old
// one.
type Server struct {
	mu       sync.RWMutex
	session  *recommend.Session
	cache    *cache.Cache
	narrator Narrator
	usage    UsageRecorder
	started  time.Time
}

func New(session *recommend.Session, c *cache.Cache) *Server {
	return &Server{session: session, cache: c, started: time.Now()}
}

func (s *Server) SetNarrator(n Narrator)   { s.narrator = n }
func (s *Server) SetUsage(u UsageRecorder) { s.usage = u }

// SwapSession installs a freshly built session and drops cached responses
// computed against the old one.
func (s *Server) SwapSession(sess *recommend.Session) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
	s.cache.Clear()
}

func (s *Server) current() *recommend.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", s.track("/api/v1/health", s.handleHealth))
	mux.HandleFunc("GET /api/v1/similar/{ticker}", s.track("/api/v1/similar", s.handleSimilar))
	mux.HandleFunc("POST /api/v1/gaps", s.track("/api/v1/gaps", s.handleGaps))
	mux.HandleFunc("POST /api/v1/optimize", s.track("/api/v1/optimize", s.handleOptimize))
	mux.HandleFunc("POST /api/v1/backtest", s.track("/api/v1/backtest", s.handleBacktest))
	mux.HandleFunc("GET /api/v1/metrics", s.track("/api/v1/metrics", s.handleMetrics))
	mux.HandleFunc("POST /api/v1/summary/similar", s.track("/api/v1/summary/similar", s.handleSummarySimilar))
	mux.HandleFunc("POST /api/v1/summary/gaps", s.track("/api/v1/summary/gaps", s.handleSummaryGaps))
	mux.HandleFunc("POST /api/v1/summary/optimize", s.track("/api/v1/summary/optimize", s.handleSummaryOptimize))
	mux.HandleFunc("GET /api/v1/chart/allocation", s.track("/api/v1/chart/allocation", s.handleChartAllocation))
	mux.HandleFunc("GET /api/v1/chart/backtest", s.track("/api/v1/chart/backtest", s.handleChartBacktest))
	mux.HandleFunc("GET /api/v1/cache/stats", s.track("/api/v1/cache/stats", s.handleCacheStats))
	return mux
}

func (s *Server) track(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.usage != nil {
			if err := s.usage.CountUsage(endpoint); err != nil {
				log.Printf("server: usage counter for %s: %v", endpoint, err)
			}
		}
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	sess := s.current()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"ready":          sess != nil,
		"ticker_count":   tickerCount(sess),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func tickerCount(sess *recommend.Session) int {
	if sess == nil {
		return 0
	}
	return sess.Size()
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(r.PathValue("ticker")))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "invalid request", "ticker is required")
		return
	}
	topN := queryInt(r, "top_n", 5)
	if topN < 1 || topN > 20 {
		writeError(w, http.StatusBadRequest, "invalid request", "top_n must be between 1 and 20")
		return
	}

	v, err := s.cache.Do(cache.Key("similar", ticker, topN), func() (any, error) {
		return sess.Similar(ticker, topN)
	})
	if errors.Is(err, recommend.ErrUnknownTicker) {
		writeError(w, http.StatusNotFound, "unknown ticker", fmt.Sprintf("%s is not in the universe", ticker))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "similarity lookup failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type gapsRequest struct {
	Portfolio []string `json:"portfolio"`
	TopN      int      `json:"top_n"`
}

func (s *Server) handleGaps(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
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
	if req.TopN < 1 || req.TopN > 20 {
		writeError(w, http.StatusBadRequest, "invalid request", "top_n must be between 1 and 20")
		return
	}
	if !s.checkUniverse(w, sess, held) {
		return
	}

	v, err := s.cache.Do(cache.Key("gaps", held, req.TopN), func() (any, error) {
		return sess.Gaps(held, req.TopN)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "gap analysis failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type optimizeRequest struct {
	Tickers []string `json:"tickers"`
	Risk    string   `json:"risk"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
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

	v, err := s.cache.Do(cache.Key("optimize", tickers, string(tier)), func() (any, error) {
		return sess.Optimize(tickers, tier)
	})
	if err != nil {
		writeOptimizeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type backtestRequest struct {
	Tickers     []string `json:"tickers"`
	Risk        string   `json:"risk"`
	TrainMonths int      `json:"train_months"`
	TestMonths  int      `json:"test_months"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", "malformed JSON body")
		return
	}
	tickers, tier, ok := s.validateOptimizeArgs(w, sess, req.Tickers, req.Risk)
	if !ok {
		return
	}
	if req.TrainMonths < 0 || req.TestMonths < 0 {
		writeError(w, http.StatusBadRequest, "invalid request", "train_months and test_months must be positive")
		return
	}

	v, err := s.cache.Do(cache.Key("backtest", tickers, string(tier), req.TrainMonths, req.TestMonths), func() (any, error) {
		return sess.Backtest(tickers, tier, req.TrainMonths, req.TestMonths)
	})
	if err != nil {
		writeOptimizeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	sess := s.current()
	if sess == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready", "session is still building")
		return
	}
	weights, err := ParseWeights(r.URL.Query().Get("weights"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	m, err := sess.Metrics(weights)
	if err != nil {
		writeOptimizeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats())
}

// validateOptimizeArgs normalizes and bounds-checks a ticker list and risk
// tier, writing the error response itself on failure.
func (s *Server) validateOptimizeArgs(w http.ResponseWriter, sess *recommend.Session, rawTickers []string, rawRisk string) ([]string, portfolio.RiskTier, bool) {
	tickers := normalizeTickers(rawTickers)
	if len(tickers) < 2 || len(tickers) > 20 {
		writeError(w, http.StatusBadRequest, "invalid request", "between 2 and 20 tickers required")
		return nil, "", false
	}
	tier := portfolio.RiskTier(strings.ToLower(strings.TrimSpace(rawRisk)))
	if tier == "" {
		tier = portfolio.Moderate
	}
	if tier != portfolio.Conservative && tier != portfolio.Moderate && tier != portfolio.Aggressive {
		writeError(w, http.StatusBadRequest, "invalid request",
			fmt.Sprintf("invalid risk level %q, must be conservative, moderate or aggressive", rawRisk))
		return nil, "", false
	}
	if !s.checkUniverse(w, sess, tickers) {
		return nil, "", false
	}
	return tickers, tier, true
}

// checkUniverse rejects requests naming tickers outside the session,
// listing both the invalid and the valid sets like the API contract
// promises.
func (s *Server) checkUniverse(w http.ResponseWriter, sess *recommend.Session, tickers []string) bool {
	universe := sess.Tickers()
	known := make(map[string]bool, len(universe))
	for _, tk := range universe {
		known[tk] = true
	}
	var invalid []string
	for _, tk := range tickers {
		if !known[tk] {
			invalid = append(invalid, tk)
		}
	}
	if len(invalid) > 0 {
		log.Printf("server: invalid tickers requested: %v", invalid)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "unknown tickers",
			"detail": map[string]any{
				"invalid": invalid,
				"valid":   universe,
			},
		})
		return false
	}
	return true
}

func writeOptimizeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portfolio.ErrInsufficientData):
		writeError(w, http.StatusUnprocessableEntity, "insufficient data", err.Error())
	case errors.Is(err, portfolio.ErrInfeasible):
		writeError(w, http.StatusUnprocessableEntity, "infeasible constraints", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "optimization failed", err.Error())
	}
}

func normalizeTickers(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, tk := range in {
		tk = strings.ToUpper(strings.TrimSpace(tk))
		if tk == "" || seen[tk] {
			continue
		}
		seen[tk] = true
		out = append(out, tk)
	}
	return out
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeJSON(w, status, map[string]string{"error": msg, "detail": detail})
}
