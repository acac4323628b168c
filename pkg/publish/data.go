package publish

import (
	"fmt"
	"math"
	"strings"

	"github.com/mfeltz/footprint/internal/store"
	"github.com/mfeltz/footprint/pkg/source"
)

// dataFileLayout maps one source's analysis history onto a Hugo data file: the
// repository path, a header comment and the ordered columns each monthly
// record carries.
type dataFileLayout struct {
	path    string
	comment string
	columns []dataColumn
}

// dataColumn is one YAML key per monthly record. Value overrides Metric for
// derived columns; Float switches the rendering from integer to %.2f.
type dataColumn struct {
	Key    string
	Metric string
	Float  bool
	Value  func(metrics map[string]float64) float64
}

var dataFileLayouts = map[source.Type]dataFileLayout{
	source.TypeReadwise: {
		path:    "data/activity/reading.yaml",
		comment: "Monthly reading activity data",
		columns: []dataColumn{
			{Key: "articles_archived", Metric: "articles"},
			{Key: "total_words", Metric: "words"},
			{Key: "time_spent_minutes", Metric: "reading_time_mins"},
			{Key: "avg_reading_speed", Value: func(m map[string]float64) float64 {
				if m["reading_time_mins"] == 0 {
					return 0
				}
				return math.Round(m["words"] / m["reading_time_mins"])
			}},
		},
	},
	source.TypeFoursquare: {
		path:    "data/activity/travel.yaml",
		comment: "Monthly travel activity data",
		columns: []dataColumn{
			{Key: "checkins", Metric: "checkins"},
			{Key: "unique_places", Metric: "unique_places"},
		},
	},
	source.TypeGitHub: {
		path:    "data/activity/code.yaml",
		comment: "Monthly coding activity data",
		columns: []dataColumn{
			{Key: "commits", Metric: "commits"},
			{Key: "repos_touched", Metric: "repos_touched"},
		},
	},
	source.TypeHardcover: {
		path:    "data/activity/books.yaml",
		comment: "Monthly reading (books) activity data",
		columns: []dataColumn{
			{Key: "books_finished", Metric: "books_finished"},
			{Key: "avg_rating", Metric: "avg_rating", Float: true},
		},
	},
	source.TypeLetterboxd: {
		path:    "data/activity/movies.yaml",
		comment: "Monthly movies activity data",
		columns: []dataColumn{
			{Key: "movies_watched", Metric: "movies_watched"},
			{Key: "avg_rating", Metric: "avg_rating", Float: true},
		},
	},
	source.TypeOvercast: {
		path:    "data/activity/podcasts.yaml",
		comment: "Monthly podcasts activity data",
		columns: []dataColumn{
			{Key: "feeds_added", Metric: "feeds_added"},
			{Key: "feeds_removed", Metric: "feeds_removed"},
			{Key: "episodes_played", Metric: "episodes_played"},
		},
	},
	source.TypeStrong: {
		path:    "data/activity/workouts.yaml",
		comment: "Monthly workout activity data",
		columns: []dataColumn{
			{Key: "workouts", Metric: "workouts"},
			{Key: "total_minutes", Metric: "total_minutes"},
			{Key: "unique_exercises", Metric: "unique_exercises"},
			{Key: "total_sets", Metric: "total_sets"},
		},
	},
	source.TypeFeeds: {
		path:    "data/activity/posts.yaml",
		comment: "Monthly blog feed activity data",
		columns: []dataColumn{
			{Key: "posts", Metric: "posts"},
			{Key: "feeds_active", Metric: "feeds_active"},
		},
	},
}

// dataFile renders one source's full analysis history as a Hugo YAML data
// file. ok is false when the source has no file mapping or no history.
func dataFile(src source.Type, rows []store.AnalysisRow) (path string, content []byte, ok bool) {
	layout, found := dataFileLayouts[src]
	if !found || len(rows) == 0 {
		return "", nil, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", layout.comment)
	for _, row := range rows {
		fmt.Fprintf(&b, "- month: %q\n", row.YearMonth)
		for _, col := range layout.columns {
			v := row.Metrics[col.Metric]
			if col.Value != nil {
				v = col.Value(row.Metrics)
			}
			if col.Float {
				fmt.Fprintf(&b, "  %s: %.2f\n", col.Key, v)
			} else {
				fmt.Fprintf(&b, "  %s: %d\n", col.Key, int64(math.Round(v)))
			}
		}
		b.WriteString("\n")
	}
	return layout.path, []byte(b.String()), true
}
