package core

import (
	"fmt"
	"strings"
	"time"
)

// YearMonth identifies a calendar month independent of day and time.
// Ordering and bucketing always go through Key, never through formatted
// labels.
type YearMonth struct {
	Year  int
	Month int // 1-12
}

func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: int(t.Month())}
}

// CurrentMonth returns the calendar month of the local clock.
func CurrentMonth() YearMonth {
	return YearMonthOf(time.Now())
}

// ParseYearMonth parses the "2006-01" form.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	return YearMonthOf(t), nil
}

func (ym YearMonth) Validate() error {
	if ym.Year < 1 {
		return ErrInvalidDate
	}
	if ym.Month < 1 || ym.Month > 12 {
		return ErrInvalidDate
	}
	return nil
}

// Key is the month's position on an absolute month axis. Consecutive
// months differ by exactly one.
func (ym YearMonth) Key() int {
	return ym.Year*12 + ym.Month - 1
}

// AddMonths shifts the month by n, which may be negative. Year boundaries
// are normalized by time.Date.
func (ym YearMonth) AddMonths(n int) YearMonth {
	t := time.Date(ym.Year, time.Month(ym.Month+n), 1, 0, 0, 0, 0, time.UTC)
	return YearMonthOf(t)
}

// Contains reports whether t falls inside the calendar month, regardless
// of day, time or location.
func (ym YearMonth) Contains(t time.Time) bool {
	return t.Year() == ym.Year && int(t.Month()) == ym.Month
}

func (ym YearMonth) Before(other YearMonth) bool {
	return ym.Key() < other.Key()
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, ym.Month)
}

// MarshalJSON renders the "2006-01" form.
func (ym YearMonth) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ym.String() + `"`), nil
}

func (ym *YearMonth) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*ym = parsed
	return nil
}
