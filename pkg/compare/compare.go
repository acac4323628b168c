// Package compare derives month-over-month and year-over-year percentage
// deltas from monthly analysis rows. It is pure: all state arrives through
// the current metric map and the historical lookup callback.
package compare

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metric names one comparable metric. When Num and Den are set the metric is
// derived: its value is the ratio Num/Den computed from the stored metrics of
// each period before the delta is taken.
type Metric struct {
	Name string
	Num  string
	Den  string
}

// Derived reports whether the metric is a ratio of two stored metrics.
func (m Metric) Derived() bool { return m.Num != "" && m.Den != "" }

// Delta holds the two percentage changes for one metric. A nil field means
// the delta is undefined (missing period or zero baseline), which is distinct
// from a present 0%.
type Delta struct {
	MoM *float64
	YoY *float64
}

// Getter looks up the stored metric map for a period. A nil map with a nil
// error signals that no analysis row exists for that period.
type Getter func(yearMonth string) (map[string]float64, error)

// Periods resolves the two reference periods for yearMonth: the previous
// calendar month and the same month one year earlier. Year boundaries roll
// over, so "2026-01" yields mom "2025-12" and yoy "2025-01".
func Periods(yearMonth string) (mom, yoy string, err error) {
	year, month, err := ParseYearMonth(yearMonth)
	if err != nil {
		return "", "", err
	}

	momYear, momMonth := year, month-1
	if month == 1 {
		momYear, momMonth = year-1, 12
	}

	return fmt.Sprintf("%04d-%02d", momYear, momMonth),
		fmt.Sprintf("%04d-%02d", year-1, month), nil
}

// ParseYearMonth splits a "YYYY-MM" period into its parts.
func ParseYearMonth(yearMonth string) (year, month int, err error) {
	ys, ms, ok := strings.Cut(yearMonth, "-")
	if !ok || len(ys) != 4 || len(ms) != 2 {
		return 0, 0, fmt.Errorf("invalid period %q: expected YYYY-MM", yearMonth)
	}
	year, err = strconv.Atoi(ys)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid period %q: expected YYYY-MM", yearMonth)
	}
	month, err = strconv.Atoi(ms)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid period %q: month out of range", yearMonth)
	}
	return year, month, nil
}

// PercentChange returns the whole-percent change from previous to current,
// or nil when the baseline is absent or zero. A zero baseline makes the
// ratio meaningless, so it must never surface as 0% or an error.
func PercentChange(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	change := math.Round((*current - *previous) / *previous * 100)
	if change == 0 {
		// A tiny decline rounds to IEEE negative zero, which would
		// otherwise format with both signs.
		change = 0
	}
	return &change
}

// ComputeComparisons computes the MoM and YoY deltas for every requested
// metric, resolving derived metrics against each period's stored values
// before the delta is taken.
func ComputeComparisons(current map[string]float64, getter Getter, yearMonth string, metrics []Metric) (map[string]Delta, error) {
	momPeriod, yoyPeriod, err := Periods(yearMonth)
	if err != nil {
		return nil, err
	}

	momStats, err := getter(momPeriod)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", momPeriod, err)
	}
	yoyStats, err := getter(yoyPeriod)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", yoyPeriod, err)
	}

	result := make(map[string]Delta, len(metrics))
	for _, m := range metrics {
		cur := metricValue(m, current)
		result[m.Name] = Delta{
			MoM: PercentChange(cur, metricValue(m, momStats)),
			YoY: PercentChange(cur, metricValue(m, yoyStats)),
		}
	}
	return result, nil
}

// metricValue resolves a metric against one period's stored values, or nil
// when the metric (or a ratio operand) is absent.
func metricValue(m Metric, stats map[string]float64) *float64 {
	if stats == nil {
		return nil
	}
	if m.Derived() {
		num, okN := stats[m.Num]
		den, okD := stats[m.Den]
		if !okN || !okD || den == 0 {
			return nil
		}
		v := num / den
		return &v
	}
	v, ok := stats[m.Name]
	if !ok {
		return nil
	}
	return &v
}
