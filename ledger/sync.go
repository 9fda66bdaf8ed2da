/*
sync.go - Reconciliation pass coordinator

PURPOSE:
  Orchestrates one full reconciliation pass: clean up duplicates, diff the
  source tables against the ledger, and create whatever is missing. The
  coordinator is the only component with explicit concurrency control.

GUARDS:
  1. Single-flight: at most one pass runs at a time per process. A trigger
     that arrives mid-pass returns immediately (no queue, no error).
  2. Cooldown: a pass that finished less than the cooldown window ago
     absorbs the trigger. ForceSync bypasses this guard (and only this one).

  Both guards are in-process state owned by this instance. Across processes
  correctness falls back to the store's unique keys plus the reconciler;
  the guards are load shedding, not the correctness mechanism.

PASS SHAPE:
  dedupe → diff → per-kind batched fetch + write. Duplicate cleanup always
  precedes creation so a prior partial sync is not compounded. Individual
  write failures are counted, not fatal: the record stays missing and the
  next pass retries it. Read failures abort the pass.

  The last-run timestamp is updated on completion whether the pass fully
  succeeded or not; a burst of change notifications coalesces into at most
  one pass per cooldown window.

SEE ALSO:
  - scanner.go, dedupe.go, writer.go: The phases
  - notify/: Kafka consumer that feeds MaybeSync
*/
package ledger

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// DefaultCooldown is the minimum gap between completed passes.
	DefaultCooldown = 2 * time.Minute

	// fetchBatchSize bounds how many source records are fetched and written
	// per batch within a kind.
	fetchBatchSize = 50
)

// =============================================================================
// SYNC COORDINATOR
// =============================================================================

// Coordinator owns the sync guards and runs reconciliation passes. Create one
// long-lived instance per process and share it; the zero value is not usable.
type Coordinator struct {
	store      Store
	scanner    *Scanner
	reconciler *Reconciler
	writer     *Writer
	sources    SourceReader
	cooldown   time.Duration
	now        func() time.Time // test seam

	mu      sync.Mutex
	running bool
	lastRun time.Time
}

// NewCoordinator wires a coordinator over a ledger store and source tables.
func NewCoordinator(store Store, sources SourceReader) *Coordinator {
	return &Coordinator{
		store:      store,
		scanner:    NewScanner(store, sources),
		reconciler: NewReconciler(store),
		writer:     NewWriter(store),
		sources:    sources,
		cooldown:   DefaultCooldown,
		now:        time.Now,
	}
}

// SetCooldown overrides the cooldown window. Zero disables it.
func (c *Coordinator) SetCooldown(d time.Duration) { c.cooldown = d }

// Writer exposes the coordinator's entry writer for the transfer path, so
// transfers and synced entries share one number generator.
func (c *Coordinator) Writer() *Writer { return c.writer }

// Reconciler exposes the duplicate/consistency reconciler.
func (c *Coordinator) Reconciler() *Reconciler { return c.reconciler }

// MaybeSync runs a reconciliation pass unless one is already running or the
// previous pass finished within the cooldown window. Skips are not errors:
// the returned report has Ran=false.
func (c *Coordinator) MaybeSync(ctx context.Context) (SyncReport, error) {
	return c.sync(ctx, false)
}

// ForceSync bypasses the cooldown guard but still respects single-flight.
func (c *Coordinator) ForceSync(ctx context.Context) (SyncReport, error) {
	return c.sync(ctx, true)
}

func (c *Coordinator) sync(ctx context.Context, force bool) (SyncReport, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return SyncReport{}, nil
	}
	if !force && !c.lastRun.IsZero() && c.now().Sub(c.lastRun) < c.cooldown {
		c.mu.Unlock()
		return SyncReport{}, nil
	}
	c.running = true
	c.mu.Unlock()

	report, err := c.pass(ctx)

	// Completion (success or partial failure) updates the last-run stamp so
	// a burst of triggers is absorbed by the cooldown.
	c.mu.Lock()
	c.running = false
	c.lastRun = c.now()
	c.mu.Unlock()

	return report, err
}

// pass runs one full reconciliation. No mid-flight cancellation beyond the
// context on individual I/O calls: partial completion is safe (idempotent)
// and the next trigger resumes where this one left off.
func (c *Coordinator) pass(ctx context.Context) (SyncReport, error) {
	report := SyncReport{
		Ran:       true,
		StartedAt: c.now(),
		Created:   make(map[SourceKind]int),
		Failed:    make(map[SourceKind]int),
		Skipped:   make(map[SourceKind]int),
	}

	// Duplicate cleanup always precedes creation.
	purged, err := c.reconciler.RemoveDuplicates(ctx)
	if err != nil {
		report.FinishedAt = c.now()
		return report, err
	}
	report.DuplicatesPurged = purged
	if purged > 0 {
		log.Printf("[Sync] purged %d duplicate entries", purged)
	}

	missing, err := c.scanner.Missing(ctx)
	if err != nil {
		report.FinishedAt = c.now()
		return report, err
	}
	if missing.Empty() {
		report.FinishedAt = c.now()
		return report, nil
	}

	// Kinds touch disjoint (kind, id) keys, so order between them is free.
	for _, kind := range SyncedKinds {
		ids := missing.ByKind(kind)
		if len(ids) == 0 {
			continue
		}
		created, skipped, failed := c.syncKind(ctx, kind, ids)
		report.Created[kind] += created
		report.Skipped[kind] += skipped
		report.Failed[kind] += failed
	}

	report.FinishedAt = c.now()
	log.Printf("[Sync] pass complete: created=%d skipped=%d failed=%d",
		report.TotalCreated(), report.TotalSkipped(), report.TotalFailed())
	return report, nil
}

func (c *Coordinator) syncKind(ctx context.Context, kind SourceKind, ids []int64) (created, skipped, failed int) {
	for start := 0; start < len(ids); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(ids) {
			end = len(ids)
		}

		recs, err := c.sources.SourceRecords(ctx, kind, ids[start:end])
		if err != nil {
			// A failed fetch leaves these records missing for the next pass.
			log.Printf("[Sync] fetch %s batch: %v", kind, err)
			failed += end - start
			continue
		}

		batchCreated, batchSkipped, batchFailed, err := c.writer.WriteBatch(ctx, kind, recs)
		if err != nil {
			log.Printf("[Sync] write %s batch: %v", kind, err)
			failed += len(recs)
			continue
		}
		created += len(batchCreated)
		skipped += batchSkipped
		failed += batchFailed
	}
	return created, skipped, failed
}
