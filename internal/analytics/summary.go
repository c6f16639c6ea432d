// Package analytics contains the pure derivations over a ledger snapshot:
// monthly summary, trailing trend series and filtered entry queries. Every
// function here is a total, deterministic function of its arguments and
// holds no state across calls.
package analytics

import (
	"sort"

	"registro/internal/core"
)

// CategoryTotal is one expense category with its aggregated amount.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
}

// MonthSummary is the income/expense overview of a single calendar month.
type MonthSummary struct {
	Month        core.YearMonth  `json:"month"`
	TotalIncome  int64           `json:"totalIncome"`
	TotalExpense int64           `json:"totalExpense"`
	NetBalance   int64           `json:"netBalance"`
	ByCategory   []CategoryTotal `json:"byCategory"`
}

// Summarize aggregates all entries dated inside the given month. ByCategory
// covers expense entries only, sorted by total descending; equal totals
// keep first-encountered category order, so the output is deterministic for
// a given snapshot. An empty month yields zero totals and an empty
// breakdown.
func Summarize(entries []core.Entry, month core.YearMonth) MonthSummary {
	s := MonthSummary{Month: month}

	totals := make(map[string]int64)
	var order []string
	for _, e := range entries {
		if !month.Contains(e.Date) {
			continue
		}
		switch e.Type {
		case core.Income:
			s.TotalIncome += e.Amount.Units
		case core.Expense:
			s.TotalExpense += e.Amount.Units
			if _, seen := totals[e.Category]; !seen {
				order = append(order, e.Category)
			}
			totals[e.Category] += e.Amount.Units
		}
	}
	s.NetBalance = s.TotalIncome - s.TotalExpense

	s.ByCategory = make([]CategoryTotal, 0, len(order))
	for _, c := range order {
		s.ByCategory = append(s.ByCategory, CategoryTotal{Category: c, Total: totals[c]})
	}
	// Stable: insertion order breaks ties between equal totals.
	sort.SliceStable(s.ByCategory, func(i, j int) bool {
		return s.ByCategory[i].Total > s.ByCategory[j].Total
	})
	return s
}
