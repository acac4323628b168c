package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfeltz/footprint/internal/store"
	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/source"
)

// countingAdapter reduces a month to a record count plus a word sum, in the
// shape real adapters use.
type countingAdapter struct{}

func (countingAdapter) Name() source.Type { return source.TypeReadwise }

func (countingAdapter) FetchSince(ctx context.Context, cursor string) (source.Batch, error) {
	return source.Batch{}, nil
}

func (countingAdapter) Reduce(records []source.Record) map[string]float64 {
	var words float64
	for i := range records {
		words += records[i].Values["word_count"]
	}
	return map[string]float64{
		"articles": float64(len(records)),
		"words":    words,
	}
}

func (countingAdapter) Comparisons() []compare.Metric {
	return []compare.Metric{{Name: "articles"}}
}

func seedRecords(t *testing.T, st *store.Store, records ...source.Record) {
	t.Helper()
	require.NoError(t, st.ApplyBatch(context.Background(), records, "c"))
}

func record(id string, occurred time.Time, words float64) source.Record {
	return source.Record{
		ID:         id,
		Source:     source.TypeReadwise,
		OccurredAt: occurred,
		Values:     map[string]float64{"word_count": words},
		FetchedAt:  time.Now().UTC(),
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir(), source.TypeReadwise)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestAnalyze(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedRecords(t, st,
		record("readwise:1", time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC), 500),
		record("readwise:2", time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC), 900),
		record("readwise:3", time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), 100),
	)

	row, err := Analyze(ctx, st, countingAdapter{}, "2025-08")
	require.NoError(t, err)
	assert.Equal(t, "2025-08", row.YearMonth)
	assert.Equal(t, 2025, row.Year)
	assert.Equal(t, 8, row.Month)
	assert.Equal(t, 2.0, row.Metrics["articles"])
	assert.Equal(t, 1400.0, row.Metrics["words"])

	stored, err := st.AnalysisRow(ctx, "2025-08")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, row.Metrics, stored.Metrics)
}

func TestAnalyze_EmptyMonthYieldsZeroRow(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	row, err := Analyze(ctx, st, countingAdapter{}, "2025-08")
	require.NoError(t, err)
	assert.Equal(t, 0.0, row.Metrics["articles"])

	stored, err := st.AnalysisRow(ctx, "2025-08")
	require.NoError(t, err)
	require.NotNil(t, stored)
}

func TestAnalyze_Rerun_IsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedRecords(t, st, record("readwise:1", time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC), 500))

	first, err := Analyze(ctx, st, countingAdapter{}, "2025-08")
	require.NoError(t, err)
	second, err := Analyze(ctx, st, countingAdapter{}, "2025-08")
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)

	rows, err := st.AllAnalysisRows(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAnalyze_InvalidPeriod(t *testing.T) {
	st := openTestStore(t)
	_, err := Analyze(context.Background(), st, countingAdapter{}, "August 2025")
	assert.Error(t, err)
}

func TestAnalyzeAll(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	seedRecords(t, st,
		record("readwise:1", time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), 100),
		record("readwise:2", time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC), 200),
	)

	months, err := AnalyzeAll(ctx, st, countingAdapter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-06", "2025-08"}, months)

	rows, err := st.AllAnalysisRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1.0, rows[0].Metrics["articles"])
	assert.Equal(t, 1.0, rows[1].Metrics["articles"])
}
