package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/mfeltz/footprint/internal/store"
	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/source"
)

// Publisher assembles the monthly summary post and the activity data files
// from every source's analysis history and commits them through one
// transaction. Sources appear in registry order.
type Publisher struct {
	registry *source.Registry
	stores   map[source.Type]*store.Store
	tx       *Transaction

	// Now is the front-matter clock; overridable in tests.
	Now func() time.Time
}

// NewPublisher creates a publisher over the given stores and transaction.
func NewPublisher(registry *source.Registry, stores map[source.Type]*store.Store, tx *Transaction) *Publisher {
	return &Publisher{registry: registry, stores: stores, tx: tx, Now: time.Now}
}

// LatestYearMonth returns the most recent analyzed month across all sources,
// or "" when no analysis has run anywhere.
func (p *Publisher) LatestYearMonth(ctx context.Context) (string, error) {
	var latest string
	for _, name := range p.registry.Names() {
		st, ok := p.stores[name]
		if !ok {
			continue
		}
		ym, err := st.LatestYearMonth(ctx)
		if err != nil {
			return "", err
		}
		if ym > latest {
			latest = ym
		}
	}
	return latest, nil
}

// BuildManifest generates the summary post for yearMonth plus every data file
// with history, as one manifest. It fails when no source has an analysis row
// for the month.
func (p *Publisher) BuildManifest(ctx context.Context, yearMonth string) (Manifest, error) {
	year, month, err := compare.ParseYearMonth(yearMonth)
	if err != nil {
		return Manifest{}, err
	}

	var reports []SourceReport
	var entries []Entry

	for _, name := range p.registry.Names() {
		st, ok := p.stores[name]
		if !ok {
			continue
		}

		report, err := p.report(ctx, st, name, yearMonth)
		if err != nil {
			return Manifest{}, fmt.Errorf("report %s: %w", name, err)
		}
		if report != nil {
			reports = append(reports, *report)
		}

		rows, err := st.AllAnalysisRows(ctx)
		if err != nil {
			return Manifest{}, fmt.Errorf("history %s: %w", name, err)
		}
		if path, content, ok := dataFile(name, rows); ok {
			entries = append(entries, Entry{Path: path, Content: content})
		}
	}

	if len(reports) == 0 {
		return Manifest{}, fmt.Errorf("no analysis rows for %s", yearMonth)
	}

	post, err := RenderMonthlySummary(yearMonth, p.Now(), reports)
	if err != nil {
		return Manifest{}, err
	}

	postPath := fmt.Sprintf("content/posts/%04d-%02d-monthly-summary.md", year, month)
	entries = append([]Entry{{Path: postPath, Content: post}}, entries...)

	return Manifest{
		Entries: entries,
		Message: fmt.Sprintf("Add monthly summary draft for %02d/%04d", month, year),
	}, nil
}

// Publish builds the manifest for yearMonth and commits it atomically,
// returning the new commit SHA.
func (p *Publisher) Publish(ctx context.Context, yearMonth string) (string, error) {
	m, err := p.BuildManifest(ctx, yearMonth)
	if err != nil {
		return "", err
	}
	return p.tx.Commit(ctx, m)
}

// report builds one source's summary section input, or nil when the source
// has no analysis row for the month.
func (p *Publisher) report(ctx context.Context, st *store.Store, name source.Type, yearMonth string) (*SourceReport, error) {
	row, err := st.AnalysisRow(ctx, yearMonth)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	adapter, ok := p.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("no adapter registered for %s", name)
	}

	getter := func(ym string) (map[string]float64, error) {
		r, err := st.AnalysisRow(ctx, ym)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, nil
		}
		return r.Metrics, nil
	}

	deltas, err := compare.ComputeComparisons(row.Metrics, getter, yearMonth, adapter.Comparisons())
	if err != nil {
		return nil, err
	}

	return &SourceReport{Source: name, Metrics: row.Metrics, Deltas: deltas}, nil
}
