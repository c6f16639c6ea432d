package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/analytics"
	"registro/internal/core"
)

func TestTrend(t *testing.T) {
	entries := []core.Entry{
		entry("2024-03-05", core.Expense, 15000, "Food"),
		entry("2024-03-10", core.Income, 500000, "Salary"),
		entry("2024-02-20", core.Expense, 8000, "Food"),
	}

	points := analytics.Trend(entries, 3, core.YearMonth{Year: 2024, Month: 3})

	require.Len(t, points, 3)
	assert.Equal(t, analytics.TrendPoint{Month: core.YearMonth{Year: 2024, Month: 1}}, points[0])
	assert.Equal(t, analytics.TrendPoint{Month: core.YearMonth{Year: 2024, Month: 2}, Expense: 8000}, points[1])
	assert.Equal(t, analytics.TrendPoint{Month: core.YearMonth{Year: 2024, Month: 3}, Income: 500000, Expense: 15000}, points[2])
}

func TestTrendAlwaysFullWindow(t *testing.T) {
	points := analytics.Trend(nil, 6, core.YearMonth{Year: 2024, Month: 3})

	require.Len(t, points, 6)
	for i, p := range points {
		assert.Zero(t, p.Income)
		assert.Zero(t, p.Expense)
		if i > 0 {
			assert.Equal(t, 1, p.Month.Key()-points[i-1].Month.Key(), "months must be consecutive ascending")
		}
	}
	assert.Equal(t, core.YearMonth{Year: 2023, Month: 10}, points[0].Month)
	assert.Equal(t, core.YearMonth{Year: 2024, Month: 3}, points[5].Month)
}

func TestTrendCrossesYearBoundary(t *testing.T) {
	entries := []core.Entry{
		entry("2023-12-15", core.Expense, 300, "Gifts"),
		entry("2024-01-10", core.Income, 900, "Salary"),
	}
	points := analytics.Trend(entries, 3, core.YearMonth{Year: 2024, Month: 2})

	require.Len(t, points, 3)
	assert.Equal(t, int64(300), points[0].Expense)
	assert.Equal(t, int64(900), points[1].Income)
}

func TestTrendIgnoresEntriesOutsideWindow(t *testing.T) {
	entries := []core.Entry{
		entry("2020-01-01", core.Expense, 999, "Old"),
		entry("2024-04-01", core.Income, 999, "Future"),
		entry("2024-03-01", core.Expense, 10, "Food"),
	}
	points := analytics.Trend(entries, 2, core.YearMonth{Year: 2024, Month: 3})

	require.Len(t, points, 2)
	assert.Zero(t, points[0].Expense)
	assert.Equal(t, int64(10), points[1].Expense)
	assert.Zero(t, points[1].Income)
}

func TestTrendWindowFloorsAtOne(t *testing.T) {
	points := analytics.Trend(nil, 0, core.YearMonth{Year: 2024, Month: 3})
	require.Len(t, points, 1)
	assert.Equal(t, core.YearMonth{Year: 2024, Month: 3}, points[0].Month)
}

func TestTrendIsIdempotent(t *testing.T) {
	entries := []core.Entry{
		entry("2024-03-05", core.Expense, 100, "Food"),
	}
	anchor := core.YearMonth{Year: 2024, Month: 3}
	assert.Equal(t, analytics.Trend(entries, 4, anchor), analytics.Trend(entries, 4, anchor))
}
