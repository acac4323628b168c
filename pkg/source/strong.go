package source

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

// Strong imports a Strong app CSV export. Each CSV row is one exercise set;
// the workout itself is derived from the set rows and stored as its own
// record so durations are not double counted. Cursorless, like the other
// file imports.
type Strong struct {
	exportPath string
}

// NewStrong creates an importer for the CSV export file.
func NewStrong(exportPath string) *Strong {
	return &Strong{exportPath: exportPath}
}

func (s *Strong) Name() Type { return TypeStrong }

func (s *Strong) FetchSince(ctx context.Context, cursor string) (Batch, error) {
	f, err := os.Open(s.exportPath)
	if err != nil {
		return Batch{}, fmt.Errorf("open strong export: %w", err)
	}
	defer f.Close()

	rows, err := readCSVRows(f)
	if err != nil {
		return Batch{}, fault.Validation("parse strong csv", err)
	}

	now := time.Now().UTC()
	var records []Record
	seenWorkouts := make(map[string]bool)

	for _, row := range rows {
		started, err := parseStrongTime(row["Date"])
		if err != nil {
			fmt.Fprintln(os.Stderr, "  strong: skipping row with bad date")
			continue
		}

		workoutID := started.Format("2006-01-02T15:04")

		if !seenWorkouts[workoutID] {
			seenWorkouts[workoutID] = true
			records = append(records, Record{
				ID:         "strong:workout:" + workoutID,
				Source:     TypeStrong,
				OccurredAt: started,
				Labels:     map[string]string{"kind": "workout", "name": row["Workout Name"]},
				Values: map[string]float64{
					"minutes": parseStrongDuration(row["Duration"]),
				},
				FetchedAt: now,
			})
		}

		exercise := row["Exercise Name"]
		if exercise == "" {
			continue
		}
		records = append(records, Record{
			ID:         fmt.Sprintf("strong:set:%s:%s:%s", workoutID, exercise, row["Set Order"]),
			Source:     TypeStrong,
			OccurredAt: started,
			Labels:     map[string]string{"kind": "set", "exercise": exercise},
			Values:     map[string]float64{},
			FetchedAt:  now,
		})
	}

	return Batch{Records: records, NextCursor: cursor, HasMore: false}, nil
}

func parseStrongTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

// parseStrongDuration reads durations like "1h 10m" or "45m" as minutes.
func parseStrongDuration(s string) float64 {
	d, err := time.ParseDuration(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		return 0
	}
	return d.Minutes()
}

func (s *Strong) Reduce(records []Record) map[string]float64 {
	workouts := filterLabel(records, "kind", "workout")
	sets := filterLabel(records, "kind", "set")

	return map[string]float64{
		"workouts":         float64(len(workouts)),
		"total_minutes":    sumValue(workouts, "minutes"),
		"unique_exercises": distinctLabel(sets, "exercise"),
		"total_sets":       float64(len(sets)),
	}
}

func (s *Strong) Comparisons() []compare.Metric {
	return []compare.Metric{
		{Name: "workouts"},
		{Name: "total_minutes"},
	}
}
