// Package store persists price snapshots and endpoint usage counters in
// SQLite, so a restart can rebuild a session without refetching the whole
// universe.
package store

import (
	"database/sql"
	"fmt"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	"stockadvisor/internal/market"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	Close() error
}

type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(db DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS price_snapshots(
		ticker TEXT NOT NULL, day TEXT NOT NULL, close REAL NOT NULL,
		PRIMARY KEY(ticker, day)
	)`); err != nil {
		return fmt.Errorf("init price_snapshots: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS endpoint_usage(
		endpoint TEXT PRIMARY KEY, hits INTEGER NOT NULL DEFAULT 0, last_hit INTEGER
	)`); err != nil {
		return fmt.Errorf("init endpoint_usage: %w", err)
	}
	return nil
}

func NewStore(db DB) *Store { return &Store{db: db} }

// SavePrices upserts every valid cell of the table.
func (s *Store) SavePrices(prices *market.PriceTable) error {
	for r := 0; r < prices.Len(); r++ {
		day := prices.Date(r).Format("2006-01-02")
		for _, tk := range prices.Tickers() {
			px, ok := prices.At(r, tk)
			if !ok {
				continue
			}
			if _, err := s.db.Exec(
				`INSERT OR REPLACE INTO price_snapshots(ticker,day,close) VALUES(?,?,?)`,
				tk, day, px); err != nil {
				return fmt.Errorf("save price %s %s: %w", tk, day, err)
			}
		}
	}
	return nil
}

// LoadPrices rebuilds a table from every snapshot row. Returns
// (nil, nil) when the store is empty.
func (s *Store) LoadPrices() (*market.PriceTable, error) {
	rows, err := s.db.Query(`SELECT ticker, day, close FROM price_snapshots ORDER BY day ASC`)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	defer rows.Close()

	byTicker := map[string]market.Series{}
	for rows.Next() {
		var tk, day string
		var px float64
		if err := rows.Scan(&tk, &day, &px); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		d, err := time.Parse("2006-01-02", day)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot day %q: %w", day, err)
		}
		series := byTicker[tk]
		series.Ticker = tk
		series.Timestamps = append(series.Timestamps, d)
		series.Closes = append(series.Closes, px)
		byTicker[tk] = series
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	if len(byTicker) == 0 {
		return nil, nil
	}

	all := make([]market.Series, 0, len(byTicker))
	for _, series := range byTicker {
		all = append(all, series)
	}
	return market.Merge(all), nil
}

// CountUsage bumps the hit counter for an endpoint.
func (s *Store) CountUsage(endpoint string) error {
	_, err := s.db.Exec(`INSERT INTO endpoint_usage(endpoint,hits,last_hit) VALUES(?,1,?)
		ON CONFLICT(endpoint) DO UPDATE SET hits=hits+1, last_hit=excluded.last_hit`,
		endpoint, time.Now().Unix())
	return err
}

// Usage returns hit counts per endpoint.
func (s *Store) Usage() (map[string]int64, error) {
	rows, err := s.db.Query(`SELECT endpoint, hits FROM endpoint_usage ORDER BY endpoint ASC`)
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var ep string
		var hits int64
		if err := rows.Scan(&ep, &hits); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		out[ep] = hits
	}
	return out, rows.Err()
}
