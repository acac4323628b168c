// Package store persists one source's raw records, monthly analysis rows and
// sync cursor in a private SQLite database. Stores are never shared across
// sources; a batch of records and its cursor advance commit in a single
// transaction so a crash can only ever land on a batch boundary.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/mfeltz/footprint/pkg/compare"
	"github.com/mfeltz/footprint/pkg/source"
)

// AnalysisRow is the monthly rollup for one source, keyed by year_month.
// Recomputing a month overwrites the row in place.
type AnalysisRow struct {
	YearMonth   string    `db:"year_month"`
	Year        int       `db:"year"`
	Month       int       `db:"month"`
	Metrics     map[string]float64 `db:"-"`
	MetricsJSON string    `db:"metrics"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// SyncState is the single live cursor row for a source.
type SyncState struct {
	Cursor       string       `db:"cursor"`
	LastSyncedAt sql.NullTime `db:"last_synced_at"`
}

// Store is one source's SQLite-backed local store.
type Store struct {
	db  *sqlx.DB
	src source.Type
}

// Open opens (creating if needed) the store for src under dir and runs
// migrations.
func Open(dir string, src source.Type) (*Store, error) {
	path := filepath.Join(dir, string(src)+".db")
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, src: src}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Source returns the source this store belongs to.
func (s *Store) Source() source.Type { return s.src }

// ApplyBatch upserts every record and advances the cursor in one
// transaction. Either the whole batch lands and the cursor moves, or nothing
// changes.
func (s *Store) ApplyBatch(ctx context.Context, records []source.Record, nextCursor string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	for i := range records {
		if err := upsertRecord(ctx, tx, &records[i]); err != nil {
			return err
		}
	}

	if err := setCursor(ctx, tx, nextCursor); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func upsertRecord(ctx context.Context, tx *sqlx.Tx, r *source.Record) error {
	labelsJSON, _ := json.Marshal(r.Labels)
	valsJSON, _ := json.Marshal(r.Values)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO records (id, source, occurred_at, labels, vals, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			occurred_at = excluded.occurred_at,
			labels = excluded.labels,
			vals = excluded.vals,
			fetched_at = excluded.fetched_at
	`, r.ID, r.Source, r.OccurredAt.UTC(), string(labelsJSON), string(valsJSON), r.FetchedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", r.ID, err)
	}
	return nil
}

func setCursor(ctx context.Context, tx *sqlx.Tx, cursor string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_state (id, cursor, last_synced_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cursor = excluded.cursor,
			last_synced_at = excluded.last_synced_at
	`, cursor, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}

// Cursor returns the committed sync cursor, or "" on first run.
func (s *Store) Cursor(ctx context.Context) (string, error) {
	var state SyncState
	err := s.db.GetContext(ctx, &state, "SELECT cursor, last_synced_at FROM sync_state WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get cursor: %w", err)
	}
	return state.Cursor, nil
}

// SyncStateRow returns the full sync state, or nil when no sync has run.
func (s *Store) SyncStateRow(ctx context.Context) (*SyncState, error) {
	var state SyncState
	err := s.db.GetContext(ctx, &state, "SELECT cursor, last_synced_at FROM sync_state WHERE id = 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sync state: %w", err)
	}
	return &state, nil
}

// ResetCursor clears the cursor so the next sync starts from the source's
// beginning of time. Records are left in place; upserts keep the re-ingest
// idempotent.
func (s *Store) ResetCursor(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sync_state WHERE id = 1")
	if err != nil {
		return fmt.Errorf("reset cursor: %w", err)
	}
	return nil
}

// RecordsInMonth returns the records whose timestamp falls inside the
// yearMonth calendar month, oldest first.
func (s *Store) RecordsInMonth(ctx context.Context, yearMonth string) ([]source.Record, error) {
	year, month, err := compare.ParseYearMonth(yearMonth)
	if err != nil {
		return nil, err
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var records []source.Record
	err = s.db.SelectContext(ctx, &records, `
		SELECT * FROM records
		WHERE occurred_at >= ? AND occurred_at < ?
		ORDER BY occurred_at
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("records in %s: %w", yearMonth, err)
	}

	for i := range records {
		json.Unmarshal([]byte(records[i].LabelsJSON), &records[i].Labels)
		json.Unmarshal([]byte(records[i].ValuesJSON), &records[i].Values)
	}
	return records, nil
}

// MonthsWithRecords returns every year_month that has at least one record,
// oldest first.
func (s *Store) MonthsWithRecords(ctx context.Context) ([]string, error) {
	var months []string
	err := s.db.SelectContext(ctx, &months, `
		SELECT DISTINCT strftime('%Y-%m', occurred_at) FROM records ORDER BY 1
	`)
	if err != nil {
		return nil, fmt.Errorf("months with records: %w", err)
	}
	return months, nil
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM records"); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// UpsertAnalysisRow writes the rollup for row.YearMonth, replacing any
// previous rollup for that month.
func (s *Store) UpsertAnalysisRow(ctx context.Context, row AnalysisRow) error {
	metricsJSON, _ := json.Marshal(row.Metrics)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analysis (year_month, year, month, metrics, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(year_month) DO UPDATE SET
			year = excluded.year,
			month = excluded.month,
			metrics = excluded.metrics,
			updated_at = excluded.updated_at
	`, row.YearMonth, row.Year, row.Month, string(metricsJSON), row.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert analysis %s: %w", row.YearMonth, err)
	}
	return nil
}

// AnalysisRow returns the rollup for yearMonth, or nil when none exists.
func (s *Store) AnalysisRow(ctx context.Context, yearMonth string) (*AnalysisRow, error) {
	var row AnalysisRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM analysis WHERE year_month = ?", yearMonth)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", yearMonth, err)
	}
	json.Unmarshal([]byte(row.MetricsJSON), &row.Metrics)
	return &row, nil
}

// AllAnalysisRows returns every rollup, oldest month first.
func (s *Store) AllAnalysisRows(ctx context.Context) ([]AnalysisRow, error) {
	var rows []AnalysisRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM analysis ORDER BY year_month")
	if err != nil {
		return nil, fmt.Errorf("list analysis: %w", err)
	}
	for i := range rows {
		json.Unmarshal([]byte(rows[i].MetricsJSON), &rows[i].Metrics)
	}
	return rows, nil
}

// LatestYearMonth returns the most recent analyzed month, or "" when no
// analysis has run.
func (s *Store) LatestYearMonth(ctx context.Context) (string, error) {
	var ym string
	err := s.db.GetContext(ctx, &ym, "SELECT year_month FROM analysis ORDER BY year_month DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest year_month: %w", err)
	}
	return ym, nil
}
