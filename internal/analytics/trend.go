package analytics

import (
	"registro/internal/core"
)

// DefaultTrendWindow is the trailing window length used when the caller
// does not choose one.
const DefaultTrendWindow = 6

// TrendPoint is one month's income/expense totals inside a trend window.
type TrendPoint struct {
	Month   core.YearMonth `json:"month"`
	Income  int64          `json:"income"`
	Expense int64          `json:"expense"`
}

// Trend buckets entries into `window` consecutive calendar months ending
// at anchor inclusive. The result always has exactly `window` elements,
// oldest first, with zero-filled months where no entries fall. Bucketing
// goes through the (year, month) integer key, so ordering never depends on
// entry arrival order or formatted labels. Entries outside the window are
// ignored.
func Trend(entries []core.Entry, window int, anchor core.YearMonth) []TrendPoint {
	if window < 1 {
		window = 1
	}

	points := make([]TrendPoint, window)
	first := anchor.AddMonths(-(window - 1))
	for i := range points {
		points[i].Month = first.AddMonths(i)
	}

	firstKey := first.Key()
	for _, e := range entries {
		idx := core.YearMonthOf(e.Date).Key() - firstKey
		if idx < 0 || idx >= window {
			continue
		}
		switch e.Type {
		case core.Income:
			points[idx].Income += e.Amount.Units
		case core.Expense:
			points[idx].Expense += e.Amount.Units
		}
	}
	return points
}
