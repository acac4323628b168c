package source

import (
	"context"
	"fmt"
	"time"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/fault"
)

// Type identifies which service an activity record came from.
type Type string

const (
	TypeReadwise   Type = "readwise"
	TypeFoursquare Type = "foursquare"
	TypeGitHub     Type = "github"
	TypeHardcover  Type = "hardcover"
	TypeLetterboxd Type = "letterboxd"
	TypeOvercast   Type = "overcast"
	TypeStrong     Type = "strong"
	TypeFeeds      Type = "feeds"
)

// Record is the normalized unit of activity shared by all sources: a read
// article, a checkin, a watched movie, a workout set. Labels hold the
// dimensional fields analytics counts distinct values of; Values hold the
// numeric measurements it sums and averages.
type Record struct {
	ID         string             `db:"id"`
	Source     Type               `db:"source"`
	OccurredAt time.Time          `db:"occurred_at"`
	Labels     map[string]string  `db:"-"`
	Values     map[string]float64 `db:"-"`
	FetchedAt  time.Time          `db:"fetched_at"`
	LabelsJSON string             `db:"labels"`
	ValuesJSON string             `db:"vals"`
}

// Batch is one page of records from an adapter. NextCursor is the committed
// resume point once every record in the batch has been applied.
type Batch struct {
	Records    []Record
	NextCursor string
	HasMore    bool
}

// Adapter is the capability interface every source implements. FetchSince
// must be safe to call repeatedly with the same cursor; Reduce must be a pure
// function of its input so re-running analytics for a month is idempotent.
type Adapter interface {
	Name() Type

	// FetchSince returns records newer than the opaque cursor. An empty
	// cursor means the source's beginning of time.
	FetchSince(ctx context.Context, cursor string) (Batch, error)

	// Reduce folds one month's records into the source's metric set.
	// Counts and sums are present (possibly 0) even for an empty month;
	// averages with no defined value are omitted.
	Reduce(records []Record) map[string]float64

	// Comparisons lists the metrics that get MoM/YoY deltas.
	Comparisons() []compare.Metric
}

// apiError classifies an unexpected HTTP status from a source API.
func apiError(op string, status int) error {
	err := fmt.Errorf("status %d", status)
	switch {
	case status == 401 || status == 403:
		return fault.Auth(op, err)
	case status == 429 || status >= 500:
		return fault.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
