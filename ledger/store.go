/*
store.go - Persistence interfaces for the ledger and the source tables

PURPOSE:
  Defines the interface between the engine and the database. The Store holds
  the derived ledger table; the SourceReader gives read-only access to the
  three externally-owned source tables.

KEY INTERFACES:
  Store:        Ledger entry persistence (insert, scan, delete-duplicate)
  SourceReader: Read-only id and record fetches per source kind

UNIQUENESS CONTRACT:
  Implementations MUST enforce two unique keys and report violations with
  the package sentinels:
  - entry number            → ErrDuplicateNumber
  - (source_kind, source_id) for payment/expense/purchase → ErrDuplicateSource
  These constraints are the authoritative idempotency backstop; everything
  the coordinator does in-process is best-effort on top of them.

DELETION:
  The ledger is append-mostly, not strictly append-only: DeleteEntries exists
  solely for the duplicate reconciler, which removes every entry after the
  first in a (kind, source id) group. Nothing else deletes.

IMPLEMENTATIONS:
  - store/sqlite:        Production SQLite
  - store/postgres:      Production PostgreSQL
  - ledger/store/memory: In-memory for testing/dev

SEE ALSO:
  - scanner.go: Uses SourceIDs/LedgerSourceIDs for the set diff
  - dedupe.go:  Uses Entries + DeleteEntries
*/
package ledger

import "context"

// =============================================================================
// STORE - Ledger entry persistence
// =============================================================================

type Store interface {
	// InsertEntry persists one entry and fills in its assigned ID and
	// CreatedAt. Returns ErrDuplicateNumber or ErrDuplicateSource on the
	// corresponding unique-key violation.
	InsertEntry(ctx context.Context, e *Entry) error

	// InsertEntries persists a batch. Not required to be atomic; on error the
	// caller falls back to per-entry inserts so one bad record cannot block
	// the rest.
	InsertEntries(ctx context.Context, es []*Entry) error

	// Entries returns all entries ordered by CreatedAt then ID.
	Entries(ctx context.Context) ([]Entry, error)

	// EntriesByAccount returns all entries for one account, same order.
	EntriesByAccount(ctx context.Context, account AccountType) ([]Entry, error)

	// LedgerSourceIDs returns the set of SourceID values present for a synced
	// kind. One query, no per-id lookups.
	LedgerSourceIDs(ctx context.Context, kind SourceKind) (map[int64]bool, error)

	// NumberExists checks whether an entry number is already taken.
	NumberExists(ctx context.Context, number string) (bool, error)

	// SetSourceID patches an entry's SourceID. Used only to thread transfer
	// back-references after both legs are inserted.
	SetSourceID(ctx context.Context, entryID, sourceID int64) error

	// DeleteEntries removes entries by ID. Used only by the duplicate
	// reconciler.
	DeleteEntries(ctx context.Context, ids []int64) error
}

// =============================================================================
// SOURCE READER - Read-only access to the business tables
// =============================================================================

// SourceReader exposes the source-of-truth business tables. The engine never
// mutates them.
type SourceReader interface {
	// SourceIDs returns every record id for a kind. One query per table.
	SourceIDs(ctx context.Context, kind SourceKind) ([]int64, error)

	// SourceRecords fetches specific records by id for a kind. Missing ids
	// are silently omitted (the record may have been deleted since the diff).
	SourceRecords(ctx context.Context, kind SourceKind, ids []int64) ([]SourceRecord, error)
}
