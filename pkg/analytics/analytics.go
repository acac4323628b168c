// Package analytics rolls a source's raw records up into monthly analysis
// rows. Each row is a pure function of the records stored for its month, so
// re-running for the same month overwrites the row with identical values.
package analytics

import (
	"context"
	"time"

	"github.com/mfeltz/footprint/internal/store"
	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/source"
)

// Analyze reduces the records of one calendar month through the adapter and
// upserts the resulting analysis row. A month with no records still yields a
// row: counts and sums at zero, undefined averages absent.
func Analyze(ctx context.Context, st *store.Store, a source.Adapter, yearMonth string) (store.AnalysisRow, error) {
	year, month, err := compare.ParseYearMonth(yearMonth)
	if err != nil {
		return store.AnalysisRow{}, err
	}

	records, err := st.RecordsInMonth(ctx, yearMonth)
	if err != nil {
		return store.AnalysisRow{}, err
	}

	row := store.AnalysisRow{
		YearMonth: yearMonth,
		Year:      year,
		Month:     month,
		Metrics:   a.Reduce(records),
		UpdatedAt: time.Now().UTC(),
	}

	if err := st.UpsertAnalysisRow(ctx, row); err != nil {
		return store.AnalysisRow{}, err
	}
	return row, nil
}

// AnalyzeAll recomputes the analysis row for every month that has records
// and returns the months processed, oldest first.
func AnalyzeAll(ctx context.Context, st *store.Store, a source.Adapter) ([]string, error) {
	months, err := st.MonthsWithRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, ym := range months {
		if _, err := Analyze(ctx, st, a, ym); err != nil {
			return nil, err
		}
	}
	return months, nil
}
