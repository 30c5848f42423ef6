package store

import (
	"math"
	"testing"
	"time"

	"stockadvisor/internal/market"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewStore(db)
}

func TestSaveAndLoadPricesRoundTrip(t *testing.T) {
	s := openTestStore(t)

	dates := []time.Time{
		time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC),
	}
	table := market.NewComplete(dates, map[string][]float64{
		"AAPL": {150, 151.5, 149.2},
		"MSFT": {310, 312, 315.75},
	})
	if err := s.SavePrices(table); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.LoadPrices()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 3 || loaded.NumAssets() != 2 {
		t.Fatalf("loaded %dx%d, want 3x2", loaded.Len(), loaded.NumAssets())
	}
	for r := 0; r < table.Len(); r++ {
		if !table.Date(r).Equal(loaded.Date(r)) {
			t.Errorf("row %d date %v != %v", r, loaded.Date(r), table.Date(r))
		}
		for _, tk := range table.Tickers() {
			want, _ := table.At(r, tk)
			got, ok := loaded.At(r, tk)
			if !ok || math.Abs(got-want) > 1e-9 {
				t.Errorf("%s row %d = %v (%v), want %v", tk, r, got, ok, want)
			}
		}
	}
}

func TestSavePricesIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	dates := []time.Time{time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)}
	table := market.NewComplete(dates, map[string][]float64{"AAPL": {150}})
	if err := s.SavePrices(table); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SavePrices(table); err != nil {
		t.Fatalf("second save: %v", err)
	}
	loaded, err := s.LoadPrices()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 1 {
		t.Fatalf("rows = %d after duplicate save, want 1", loaded.Len())
	}
}

func TestLoadPricesEmptyStore(t *testing.T) {
	s := openTestStore(t)
	loaded, err := s.LoadPrices()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != nil {
		t.Fatal("expected nil table from empty store")
	}
}

func TestUsageCounters(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.CountUsage("/api/v1/optimize"); err != nil {
			t.Fatalf("count: %v", err)
		}
	}
	if err := s.CountUsage("/api/v1/health"); err != nil {
		t.Fatalf("count: %v", err)
	}
	usage, err := s.Usage()
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage["/api/v1/optimize"] != 3 {
		t.Errorf("optimize hits = %d, want 3", usage["/api/v1/optimize"])
	}
	if usage["/api/v1/health"] != 1 {
		t.Errorf("health hits = %d, want 1", usage["/api/v1/health"])
	}
}
