/*
dedupe.go - Duplicate detection and cleanup

PURPOSE:
  A prior partial or overlapping sync can leave two ledger entries pointing
  at the same source record. The reconciler finds every (source kind,
  source id) group with more than one entry, keeps the earliest, and deletes
  the rest. It runs at the start of each sync pass so old duplicates are
  never compounded by new creations.

TRANSFERS ARE EXEMPT:
  Transfer entries use SourceID for their paired leg, not a source table row,
  so two transfers legitimately share a SourceID value. They are skipped by
  the duplicate key and instead checked by OrphanTransferLegs.

IDEMPOTENT:
  Running twice with no new duplicates is a no-op.

SEE ALSO:
  - sync.go: Calls RemoveDuplicates before diffing
  - transfer.go: Creates the paired entries OrphanTransferLegs audits
*/
package ledger

import (
	"context"
	"sort"
)

// =============================================================================
// DUPLICATE RECONCILER
// =============================================================================

// Reconciler removes duplicate synced entries and audits transfer pairs.
type Reconciler struct {
	store Store
}

// NewReconciler creates a reconciler over the given store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// RemoveDuplicates deletes every entry after the first in each
// (source kind, source id) group, oldest kept. Returns how many were removed.
func (r *Reconciler) RemoveDuplicates(ctx context.Context) (int, error) {
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return 0, err
	}

	// Entries arrive ordered by CreatedAt then ID, so the first entry seen
	// per key is the one to keep.
	type key struct {
		kind SourceKind
		id   int64
	}
	seen := make(map[key]bool)
	var doomed []int64
	for _, e := range entries {
		if !e.SourceKind.Synced() {
			continue
		}
		k := key{e.SourceKind, e.SourceID}
		if seen[k] {
			doomed = append(doomed, e.ID)
			continue
		}
		seen[k] = true
	}

	if len(doomed) == 0 {
		return 0, nil
	}
	if err := r.store.DeleteEntries(ctx, doomed); err != nil {
		return 0, err
	}
	return len(doomed), nil
}

// OrphanTransferLegs returns transfer entries whose back-reference is unset
// or does not resolve to a live paired entry. These are the rare artifacts of
// a transfer whose second leg failed; they are reported, never auto-deleted
// (money movement anomalies need an operator's eyes, not silent cleanup).
func (r *Reconciler) OrphanTransferLegs(ctx context.Context) ([]Entry, error) {
	entries, err := r.store.Entries(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]*Entry, len(entries))
	for i := range entries {
		byID[entries[i].ID] = &entries[i]
	}

	var orphans []Entry
	for _, e := range entries {
		if e.SourceKind != SourceTransfer {
			continue
		}
		pair, ok := byID[e.SourceID]
		if e.SourceID == 0 || !ok || pair.SourceKind != SourceTransfer || pair.SourceID != e.ID {
			orphans = append(orphans, e)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans, nil
}
