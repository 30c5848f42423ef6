package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"stockadvisor/internal/cache"
	"stockadvisor/internal/config"
	"stockadvisor/internal/market"
	"stockadvisor/internal/notify"
	"stockadvisor/internal/recommend"
	"stockadvisor/internal/server"
	"stockadvisor/internal/store"
	"stockadvisor/internal/summary"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("stockadvisor starting...")

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	var st *store.Store
	if cfg.Database.SQLitePath != "" {
		db, err := store.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("open sqlite failed, running without persistence: %v", err)
		} else if err := store.InitSchema(db); err != nil {
			log.Printf("init sqlite schema failed, running without persistence: %v", err)
			db.Close()
		} else {
			st = store.NewStore(db)
			defer db.Close()
		}
	}

	fetcher := market.NewFetcher(market.NewYahooClient(), 5)
	rangeParam := fmt.Sprintf("%dy", cfg.Universe.HistoryYears)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := buildSession(ctx, fetcher, st, cfg.Universe.Tickers, rangeParam)
	if err != nil {
		log.Fatalf("build session: %v", err)
	}

	notifier, err := notify.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		log.Printf("telegram notifier disabled: %v", err)
	}

	srv := server.New(sess, cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second))
	if cfg.OpenAI.APIKey != "" {
		srv.SetNarrator(summary.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model))
	} else {
		log.Println("no OpenAI key configured, summary endpoints disabled")
	}
	if st != nil {
		srv.SetUsage(st)
	}

	sched := cron.New(cron.WithSeconds())
	if _, err := sched.AddFunc(cfg.Universe.RebuildCron, func() {
		started := time.Now()
		fresh, err := buildSession(ctx, fetcher, st, cfg.Universe.Tickers, rangeParam)
		if err != nil {
			log.Printf("scheduled rebuild failed, keeping previous session: %v", err)
			notifier.RebuildFailed(err)
			return
		}
		srv.SwapSession(fresh)
		log.Printf("scheduled rebuild done in %s", time.Since(started).Round(time.Second))
		notifier.RebuildDigest(fresh, time.Since(started))
	}); err != nil {
		log.Fatalf("register rebuild cron %q: %v", cfg.Universe.RebuildCron, err)
	}
	sched.Start()
	defer sched.Stop()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Mux(),
	}
	go func() {
		log.Printf("listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutdown signal received, stopping...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	log.Println("stockadvisor stopped")
}

// buildSession fetches the universe and assembles a session. When the
// fetch fails and a snapshot store exists, it falls back to the last
// persisted prices so the service can start offline.
func buildSession(ctx context.Context, fetcher *market.Fetcher, st *store.Store, tickers []string, rangeParam string) (*recommend.Session, error) {
	prices, pricesErr := fetcher.FetchPrices(ctx, tickers, rangeParam)
	if pricesErr != nil {
		if st == nil {
			return nil, fmt.Errorf("fetch prices: %w", pricesErr)
		}
		log.Printf("price fetch failed, trying last snapshot: %v", pricesErr)
		snapshot, err := st.LoadPrices()
		if err != nil {
			return nil, fmt.Errorf("fetch prices: %v; load snapshot: %w", pricesErr, err)
		}
		if snapshot == nil {
			return nil, fmt.Errorf("fetch prices failed and no snapshot exists: %w", pricesErr)
		}
		prices = snapshot
	} else if st != nil {
		if err := st.SavePrices(prices); err != nil {
			log.Printf("snapshot prices: %v", err)
		}
	}

	fundamentals, err := fetcher.FetchFundamentals(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("fetch fundamentals: %w", err)
	}
	return recommend.Build(prices, fundamentals)
}
