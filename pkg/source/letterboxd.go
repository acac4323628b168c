package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

// Letterboxd imports a Letterboxd account export: watched.csv joined with
// ratings.csv by the film's Letterboxd URI. File imports are cursorless; a
// re-import of the same export upserts into place.
type Letterboxd struct {
	exportDir string
}

// NewLetterboxd creates an importer for the export directory.
func NewLetterboxd(exportDir string) *Letterboxd {
	return &Letterboxd{exportDir: exportDir}
}

func (l *Letterboxd) Name() Type { return TypeLetterboxd }

func (l *Letterboxd) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	ratings, err := l.readRatings()
	if err != nil {
		return Batch{}, err
	}

	f, err := os.Open(filepath.Join(l.exportDir, "watched.csv"))
	if err != nil {
		return Batch{}, fmt.Errorf("open letterboxd export: %w", err)
	}
	defer f.Close()

	rows, err := readCSVRows(f)
	if err != nil {
		return Batch{}, fault.Validation("parse watched.csv", err)
	}

	now := time.Now().UTC()
	var records []Record
	for _, row := range rows {
		uri := row["Letterboxd URI"]
		watched, err := time.Parse("2006-01-02", row["Date"])
		if uri == "" || err != nil {
			fmt.Fprintln(os.Stderr, "  letterboxd: skipping malformed watched row")
			continue
		}

		vals := map[string]float64{}
		if rating, ok := ratings[uri]; ok {
			vals["rating"] = rating
		}
		if year, err := strconv.Atoi(row["Year"]); err == nil {
			vals["release_year"] = float64(year)
			vals["years_since_release"] = float64(watched.Year() - year)
		}

		records = append(records, Record{
			ID:         "letterboxd:" + uri,
			Source:     TypeLetterboxd,
			OccurredAt: watched.UTC(),
			Labels:     map[string]string{"film": row["Name"]},
			Values:     vals,
			FetchedAt:  now,
		})
	}

	return Batch{Records: records, NextCursor: cursor, HasMore: false}, nil
}

func (l *Letterboxd) readRatings() (map[string]float64, error) {
	f, err := os.Open(filepath.Join(l.exportDir, "ratings.csv"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ratings.csv: %w", err)
	}
	defer f.Close()

	rows, err := readCSVRows(f)
	if err != nil {
		return nil, fault.Validation("parse ratings.csv", err)
	}

	ratings := make(map[string]float64, len(rows))
	for _, row := range rows {
		rating, err := strconv.ParseFloat(row["Rating"], 64)
		if row["Letterboxd URI"] == "" || err != nil {
			continue
		}
		ratings[row["Letterboxd URI"]] = rating
	}
	return ratings, nil
}

func (l *Letterboxd) Reduce(records []Record) map[string]float64 {
	metrics := map[string]float64{
		"movies_watched": float64(len(records)),
	}
	if avg, ok := avgValue(records, "rating"); ok {
		metrics["avg_rating"] = avg
	}
	if min, ok := minValue(records, "rating"); ok {
		metrics["min_rating"] = min
	}
	if max, ok := maxValue(records, "rating"); ok {
		metrics["max_rating"] = max
	}
	if avg, ok := avgValue(records, "years_since_release"); ok {
		metrics["avg_years_since_release"] = avg
	}
	return metrics
}

func (l *Letterboxd) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "movies_watched"},
		{Name: "avg_rating"},
	}
}

// readCSVRows reads a headered CSV into one map per row.
func readCSVRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []map[string]string
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		row := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				row[name] = fields[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
