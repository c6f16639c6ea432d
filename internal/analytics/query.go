package analytics

import (
	"sort"

	"registro/internal/core"
)

// Filter is a conjunction of optional entry predicates. Nil or empty
// fields impose no constraint.
type Filter struct {
	Month         *core.YearMonth
	Type          *core.EntryType
	Category      string
	PaymentMethod string
}

// Matches reports whether the entry satisfies every present predicate.
// A non-empty PaymentMethod can only match expense entries; income
// entries carry no payment method and are excluded.
func (f Filter) Matches(e core.Entry) bool {
	if f.Month != nil && !f.Month.Contains(e.Date) {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" {
		if e.Type != core.Expense || e.PaymentMethod != f.PaymentMethod {
			return false
		}
	}
	return true
}

// Query returns the entries matching the filter, ordered by date
// descending. Entries with equal dates keep their relative input order;
// the source collection has no secondary ordering key, so the stable sort
// is the tie-break.
func Query(entries []core.Entry, f Filter) []core.Entry {
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}
