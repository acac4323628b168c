// Package syncer drives a source adapter through one incremental sync cycle
// against its local store. Delivery is at-least-once: batches apply
// atomically together with their cursor advance, and upserts keyed on stable
// external identifiers make re-application harmless.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/mfeltz/footprint/internal/store"
	"github.com/mfeltz/footprint/pkg/fault"
	"github.com/mfeltz/footprint/pkg/source"
)

const (
	defaultMaxAttempts = 4
	defaultBackoff     = 2 * time.Second
)

// Stats summarizes one sync run.
type Stats struct {
	Batches int
	Records int
	Cursor  string
}

// Coordinator runs incremental syncs. The zero value uses the default retry
// budget.
type Coordinator struct {
	// MaxAttempts bounds how often a single fetch is tried before its
	// transient failure is surfaced.
	MaxAttempts int
	// Backoff is the initial delay between attempts; it doubles per retry.
	Backoff time.Duration
	// Sleep is swappable for tests.
	Sleep func(time.Duration)
}

// Sync loads the committed cursor, pages through the adapter and applies
// each batch atomically. On any failure the cursor stays at the last fully
// applied batch; re-running resumes from there.
func (c *Coordinator) Sync(ctx context.Context, st *store.Store, a source.Adapter) (Stats, error) {
	cursor, err := st.Cursor(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Cursor: cursor}

	for {
		batch, err := c.fetch(ctx, a, cursor)
		if err != nil {
			return stats, fmt.Errorf("sync %s: %w", a.Name(), err)
		}

		if len(batch.Records) == 0 {
			break
		}

		if err := st.ApplyBatch(ctx, batch.Records, batch.NextCursor); err != nil {
			return stats, fmt.Errorf("sync %s: %w", a.Name(), err)
		}

		cursor = batch.NextCursor
		stats.Batches++
		stats.Records += len(batch.Records)
		stats.Cursor = cursor

		if !batch.HasMore {
			break
		}
	}

	return stats, nil
}

// fetch calls FetchSince, retrying transient failures with doubling backoff
// up to the attempt budget. Auth and validation failures surface immediately.
func (c *Coordinator) fetch(ctx context.Context, a source.Adapter, cursor string) (source.Batch, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return source.Batch{}, err
		}

		batch, err := a.FetchSince(ctx, cursor)
		if err == nil {
			return batch, nil
		}
		if !fault.IsTransient(err) {
			return source.Batch{}, err
		}

		lastErr = err
		if attempt < attempts {
			sleep(backoff)
			backoff *= 2
		}
	}
	return source.Batch{}, fmt.Errorf("retries exhausted: %w", lastErr)
}
