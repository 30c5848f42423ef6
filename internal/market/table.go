package market

import (
	"sort"
	"time"
)

// PriceTable is a date-indexed table of adjusted close prices, one column
// per ticker. Dates are ascending and unique. Cells carry an explicit
// validity flag so "missing" is checkable without NaN comparisons.
// A table is never mutated after construction; all operations return a
// new table.
type PriceTable struct {
	dates   []time.Time
	tickers []string
	col     map[string]int
	values  [][]float64 // row-major, values[row][column]
	valid   [][]bool
}

// Series is one ticker's raw price history as fetched from a provider.
// Timestamps and Closes are aligned; gaps simply have no entry.
type Series struct {
	Ticker     string
	Timestamps []time.Time
	Closes     []float64
}

// Merge aligns per-ticker series on the union of their dates (truncated to
// day precision) and returns a PriceTable. Cells for dates a ticker has no
// price on are marked missing.
func Merge(series []Series) *PriceTable {
	daySet := map[time.Time]struct{}{}
	for _, s := range series {
		for _, ts := range s.Timestamps {
			daySet[day(ts)] = struct{}{}
		}
	}
	dates := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	row := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		row[d] = i
	}

	tickers := make([]string, len(series))
	for i, s := range series {
		tickers[i] = s.Ticker
	}

	t := newTable(dates, tickers)
	for c, s := range series {
		for i, ts := range s.Timestamps {
			if i >= len(s.Closes) {
				break
			}
			r, ok := row[day(ts)]
			if !ok {
				continue
			}
			t.values[r][c] = s.Closes[i]
			t.valid[r][c] = true
		}
	}
	return t
}

// NewComplete builds a fully populated table from a column-major price map.
// Every ticker must have exactly len(dates) prices. Intended for tests and
// for loading snapshots where completeness is already guaranteed.
func NewComplete(dates []time.Time, prices map[string][]float64) *PriceTable {
	tickers := make([]string, 0, len(prices))
	for tk := range prices {
		tickers = append(tickers, tk)
	}
	sort.Strings(tickers)

	t := newTable(dates, tickers)
	for c, tk := range tickers {
		col := prices[tk]
		for r := range dates {
			if r < len(col) {
				t.values[r][c] = col[r]
				t.valid[r][c] = true
			}
		}
	}
	return t
}

func newTable(dates []time.Time, tickers []string) *PriceTable {
	t := &PriceTable{
		dates:   dates,
		tickers: tickers,
		col:     make(map[string]int, len(tickers)),
		values:  make([][]float64, len(dates)),
		valid:   make([][]bool, len(dates)),
	}
	for i, tk := range tickers {
		t.col[tk] = i
	}
	for r := range dates {
		t.values[r] = make([]float64, len(tickers))
		t.valid[r] = make([]bool, len(tickers))
	}
	return t
}

func day(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Len returns the number of rows (dates).
func (t *PriceTable) Len() int { return len(t.dates) }

// NumAssets returns the number of ticker columns.
func (t *PriceTable) NumAssets() int { return len(t.tickers) }

// Tickers returns the column tickers in order.
func (t *PriceTable) Tickers() []string {
	out := make([]string, len(t.tickers))
	copy(out, t.tickers)
	return out
}

// HasTicker reports whether the table has a column for the ticker.
func (t *PriceTable) HasTicker(ticker string) bool {
	_, ok := t.col[ticker]
	return ok
}

// Date returns the date of row i.
func (t *PriceTable) Date(i int) time.Time { return t.dates[i] }

// At returns the price at (row, ticker) and whether it is present.
func (t *PriceTable) At(row int, ticker string) (float64, bool) {
	c, ok := t.col[ticker]
	if !ok || !t.valid[row][c] {
		return 0, false
	}
	return t.values[row][c], true
}

// Price returns the cell at (row, col) without a validity check. Only safe
// on tables produced by DropMissing or NewComplete.
func (t *PriceTable) Price(row, col int) float64 { return t.values[row][col] }

// Column returns the ticker's prices for rows where the cell is present.
func (t *PriceTable) Column(ticker string) []float64 {
	c, ok := t.col[ticker]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(t.dates))
	for r := range t.dates {
		if t.valid[r][c] {
			out = append(out, t.values[r][c])
		}
	}
	return out
}

// Select returns a table restricted to the requested tickers, deduplicated
// and in request order. Tickers without a column are silently dropped.
func (t *PriceTable) Select(tickers []string) *PriceTable {
	seen := map[string]bool{}
	keep := make([]int, 0, len(tickers))
	kept := make([]string, 0, len(tickers))
	for _, tk := range tickers {
		c, ok := t.col[tk]
		if !ok || seen[tk] {
			continue
		}
		seen[tk] = true
		keep = append(keep, c)
		kept = append(kept, tk)
	}

	out := newTable(t.dates, kept)
	for r := range t.dates {
		for i, c := range keep {
			out.values[r][i] = t.values[r][c]
			out.valid[r][i] = t.valid[r][c]
		}
	}
	return out
}

// DropMissing removes every row that has at least one missing cell.
func (t *PriceTable) DropMissing() *PriceTable {
	rows := make([]int, 0, len(t.dates))
	for r := range t.dates {
		complete := true
		for c := range t.tickers {
			if !t.valid[r][c] {
				complete = false
				break
			}
		}
		if complete {
			rows = append(rows, r)
		}
	}

	dates := make([]time.Time, len(rows))
	out := newTable(dates, t.tickers)
	for i, r := range rows {
		out.dates[i] = t.dates[r]
		copy(out.values[i], t.values[r])
		for c := range t.tickers {
			out.valid[i][c] = true
		}
	}
	return out
}

// Slice returns rows [i, j). The backing arrays are shared; tables are
// immutable so this is safe.
func (t *PriceTable) Slice(i, j int) *PriceTable {
	return &PriceTable{
		dates:   t.dates[i:j],
		tickers: t.tickers,
		col:     t.col,
		values:  t.values[i:j],
		valid:   t.valid[i:j],
	}
}
