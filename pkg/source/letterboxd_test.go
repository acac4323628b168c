package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLetterboxdExport(t *testing.T, watched, ratings string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watched.csv"), []byte(watched), 0o644))
	if ratings != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "ratings.csv"), []byte(ratings), 0o644))
	}
	return dir
}

func TestLetterboxd_FetchSince(t *testing.T) {
	watched := `Date,Name,Year,Letterboxd URI
2025-08-02,Alien,1979,https://boxd.it/aaa
2025-08-15,Heat,1995,https://boxd.it/bbb
`
	ratings := `Date,Name,Year,Letterboxd URI,Rating
2025-08-02,Alien,1979,https://boxd.it/aaa,4.5
`
	lb := NewLetterboxd(writeLetterboxdExport(t, watched, ratings))

	batch, err := lb.FetchSince(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, batch.Records, 2)
	assert.False(t, batch.HasMore)
	assert.Equal(t, "", batch.NextCursor)

	alien := batch.Records[0]
	assert.Equal(t, "letterboxd:https://boxd.it/aaa", alien.ID)
	assert.Equal(t, "Alien", alien.Labels["film"])
	assert.Equal(t, 4.5, alien.Values["rating"])
	// Watched in 2025, released 1979.
	assert.Equal(t, 46.0, alien.Values["years_since_release"])

	heat := batch.Records[1]
	_, rated := heat.Values["rating"]
	assert.False(t, rated)
}

func TestLetterboxd_FetchSince_NoRatingsFile(t *testing.T) {
	watched := `Date,Name,Year,Letterboxd URI
2025-08-02,Alien,1979,https://boxd.it/aaa
`
	lb := NewLetterboxd(writeLetterboxdExport(t, watched, ""))

	batch, err := lb.FetchSince(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	_, rated := batch.Records[0].Values["rating"]
	assert.False(t, rated)
}

func TestLetterboxd_FetchSince_SkipsMalformedRows(t *testing.T) {
	watched := `Date,Name,Year,Letterboxd URI
not-a-date,Broken,1990,https://boxd.it/xxx
2025-08-02,Alien,1979,https://boxd.it/aaa
2025-08-03,NoURI,1980,
`
	lb := NewLetterboxd(writeLetterboxdExport(t, watched, ""))

	batch, err := lb.FetchSince(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, batch.Records, 1)
	assert.Equal(t, "letterboxd:https://boxd.it/aaa", batch.Records[0].ID)
}

func TestLetterboxd_Reduce(t *testing.T) {
	records := []Record{
		{Values: map[string]float64{"rating": 3, "years_since_release": 10}},
		{Values: map[string]float64{"rating": 5, "years_since_release": 20}},
		{Values: map[string]float64{}},
	}

	metrics := NewLetterboxd("").Reduce(records)
	assert.Equal(t, 3.0, metrics["movies_watched"])
	assert.Equal(t, 4.0, metrics["avg_rating"])
	assert.Equal(t, 3.0, metrics["min_rating"])
	assert.Equal(t, 5.0, metrics["max_rating"])
	assert.Equal(t, 15.0, metrics["avg_years_since_release"])
}

func TestLetterboxd_Reduce_NoRatedMovies(t *testing.T) {
	metrics := NewLetterboxd("").Reduce([]Record{{Values: map[string]float64{}}})
	assert.Equal(t, 1.0, metrics["movies_watched"])
	_, ok := metrics["avg_rating"]
	assert.False(t, ok)
}
