/*
scanner.go - Source-vs-ledger set difference

PURPOSE:
  Answers "which source records have no ledger entry yet?" For each synced
  kind it fetches the full id set from the source table and the full set of
  source ids already represented in the ledger, and returns the difference.

QUERY SHAPE:
  Exactly two id fetches per kind (one per side), never an N+1 per-record
  probe. Ids are compared in memory.

FAILURE:
  Fails closed: any read failure returns empty sets together with the error.
  Skipping a sync pass is always safer than diffing against a partial view.

SEE ALSO:
  - sync.go: The only caller
*/
package ledger

import (
	"context"
	"fmt"
)

// =============================================================================
// MISSING SETS
// =============================================================================

// MissingSets holds, per source kind, the record ids with no ledger entry.
type MissingSets struct {
	Payments  []int64
	Expenses  []int64
	Purchases []int64
}

// Empty reports whether no kind has missing records.
func (m MissingSets) Empty() bool {
	return len(m.Payments) == 0 && len(m.Expenses) == 0 && len(m.Purchases) == 0
}

// ByKind returns the missing ids for one kind.
func (m MissingSets) ByKind(kind SourceKind) []int64 {
	switch kind {
	case SourcePayment:
		return m.Payments
	case SourceExpense:
		return m.Expenses
	case SourcePurchase:
		return m.Purchases
	}
	return nil
}

// =============================================================================
// SCANNER
// =============================================================================

// Scanner computes the source-minus-ledger difference. Read-only.
type Scanner struct {
	store   Store
	sources SourceReader
}

// NewScanner creates a scanner over the given store and source tables.
func NewScanner(store Store, sources SourceReader) *Scanner {
	return &Scanner{store: store, sources: sources}
}

// Missing returns the per-kind sets of source ids not yet in the ledger.
// On any read failure it returns empty sets and the error.
func (s *Scanner) Missing(ctx context.Context) (MissingSets, error) {
	var out MissingSets
	for _, kind := range SyncedKinds {
		missing, err := s.missingForKind(ctx, kind)
		if err != nil {
			return MissingSets{}, err
		}
		switch kind {
		case SourcePayment:
			out.Payments = missing
		case SourceExpense:
			out.Expenses = missing
		case SourcePurchase:
			out.Purchases = missing
		}
	}
	return out, nil
}

func (s *Scanner) missingForKind(ctx context.Context, kind SourceKind) ([]int64, error) {
	sourceIDs, err := s.sources.SourceIDs(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("scan %s ids: %w", kind, err)
	}
	synced, err := s.store.LedgerSourceIDs(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("scan ledger %s ids: %w", kind, err)
	}

	var missing []int64
	for _, id := range sourceIDs {
		if !synced[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
