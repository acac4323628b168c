package publish

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

type stubAdapter struct {
	name    source.Type
	metrics []compare.Metric
}

func (s stubAdapter) Name() source.Type { return s.name }

func (s stubAdapter) FetchSince(ctx context.Context, cursor string) (source.Batch, error) {
	return source.Batch{}, nil
}

func (s stubAdapter) Reduce(records []source.Record) map[string]float64 { return nil }

func (s stubAdapter) Comparisons() []compare.Metric { return s.metrics }

func seedAnalysis(t *testing.T, st *store.Store, ym string, metrics map[string]float64) {
	t.Helper()
	year, month, err := compare.ParseYearMonth(ym)
	require.NoError(t, err)
	require.NoError(t, st.UpsertAnalysisRow(context.Background(), store.AnalysisRow{
		YearMonth: ym, Year: year, Month: month,
		Metrics: metrics, UpdatedAt: time.Now().UTC(),
	}))
}

func testPublisher(t *testing.T, client GitClient) (*Publisher, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(dir, source.TypeReadwise)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	reg := source.NewRegistry()
	reg.Register(stubAdapter{name: source.TypeReadwise, metrics: []compare.Metric{{Name: "articles"}}})

	var tx *Transaction
	if client != nil {
		tx = NewTransaction(client, "main")
	}
	pub := NewPublisher(reg, map[source.Type]*store.Store{source.TypeReadwise: st}, tx)
	pub.Now = func() time.Time { return time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC) }
	return pub, st
}

func TestPublisher_LatestYearMonth(t *testing.T) {
	pub, st := testPublisher(t, nil)
	ctx := context.Background()

	ym, err := pub.LatestYearMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", ym)

	seedAnalysis(t, st, "2025-07", map[string]float64{"articles": 10})
	seedAnalysis(t, st, "2025-08", map[string]float64{"articles": 12})

	ym, err = pub.LatestYearMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2025-08", ym)
}

func TestPublisher_BuildManifest(t *testing.T) {
	pub, st := testPublisher(t, nil)
	ctx := context.Background()

	seedAnalysis(t, st, "2025-07", map[string]float64{
		"articles": 10, "words": 2000, "reading_time_mins": 20,
	})
	seedAnalysis(t, st, "2025-08", map[string]float64{
		"articles": 12, "words": 4500, "reading_time_mins": 30,
	})

	m, err := pub.BuildManifest(ctx, "2025-08")
	require.NoError(t, err)
	assert.Equal(t, "Add monthly summary draft for 08/2025", m.Message)
	require.Len(t, m.Entries, 2)

	assert.Equal(t, "content/posts/2025-08-monthly-summary.md", m.Entries[0].Path)
	post := string(m.Entries[0].Content)
	// 12 vs 10 articles = +20% MoM; no data a year back.
	assert.Contains(t, post, "- **Articles Archived**: 12 (+20% MoM, N/A YoY)")

	assert.Equal(t, "data/activity/reading.yaml", m.Entries[1].Path)
	assert.Contains(t, string(m.Entries[1].Content), `- month: "2025-07"`)
	assert.Contains(t, string(m.Entries[1].Content), `- month: "2025-08"`)
}

func TestPublisher_BuildManifest_NoAnalysis(t *testing.T) {
	pub, _ := testPublisher(t, nil)
	_, err := pub.BuildManifest(context.Background(), "2025-08")
	assert.Error(t, err)
}

func TestPublisher_Publish(t *testing.T) {
	client := newFakeGitClient()
	pub, st := testPublisher(t, client)

	seedAnalysis(t, st, "2025-08", map[string]float64{"articles": 12})

	sha, err := pub.Publish(context.Background(), "2025-08")
	require.NoError(t, err)
	assert.Equal(t, sha, client.head)

	tree := client.commits[sha]
	require.Len(t, client.trees[tree], 2)
}
