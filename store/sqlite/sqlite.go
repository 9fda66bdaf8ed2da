/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.Store (the derived ledger table) and ledger.SourceReader
  (the payments/expenses/purchases business tables) using SQLite. The same
  patterns apply to PostgreSQL; see store/postgres.

UNIQUENESS ENFORCEMENT:
  The two idempotency keys the engine depends on are enforced here, not in
  process:
  - entry_number UNIQUE                       → ledger.ErrDuplicateNumber
  - (source_kind, source_id) partial UNIQUE   → ledger.ErrDuplicateSource
  The partial index covers only payment/expense/purchase rows; transfer rows
  reuse source_id for their paired leg and are exempt.

SOURCE TABLES:
  The business tables are owned by the surrounding CRUD application. This
  store only SELECTs from them; the CREATE TABLE statements exist so a fresh
  dev database has the schema.

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single writer,
  better crash recovery.

USAGE:
  st, err := sqlite.New("./data/ledger.db")
  if err != nil { log.Fatal(err) }
  defer st.Close()
  coord := ledger.NewCoordinator(st, st)

SEE ALSO:
  - ledger/store.go: Interface contracts
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// Store implements ledger.Store and ledger.SourceReader using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Derived ledger (append-mostly; deletes only via the duplicate reconciler)
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_number TEXT NOT NULL UNIQUE,
		account_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT,
		source_kind TEXT NOT NULL,
		source_id INTEGER NOT NULL DEFAULT 0,
		occurred_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: the idempotency key for synced entries. Transfer rows reuse
	-- source_id for their paired leg, so they are excluded.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_source_unique
		ON ledger_entries(source_kind, source_id)
		WHERE source_kind IN ('payment', 'expense', 'purchase');

	CREATE INDEX IF NOT EXISTS idx_ledger_account
		ON ledger_entries(account_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_ledger_source_kind
		ON ledger_entries(source_kind);

	-- Source-of-truth business tables (owned by the surrounding CRUD app;
	-- this store only reads them).
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY,
		amount TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		account_hint TEXT,
		items_json TEXT,
		reference TEXT
	);
	CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY,
		amount TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		account_hint TEXT,
		items_json TEXT,
		reference TEXT
	);
	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY,
		amount TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		account_hint TEXT,
		items_json TEXT,
		reference TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// InsertEntry persists one entry, filling in its assigned ID and CreatedAt.
func (s *Store) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(ctx, s.db, e)
}

func (s *Store) insert(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, e *ledger.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ledger_entries
		(entry_number, account_type, direction, amount, description, source_kind,
		 source_id, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := db.ExecContext(ctx, query,
		e.Number,
		string(e.Account),
		string(e.Direction),
		e.Amount.String(),
		e.Description,
		string(e.SourceKind),
		e.SourceID,
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// SQLite names the violated columns in the message.
			if strings.Contains(err.Error(), "source_kind") {
				return ledger.ErrDuplicateSource
			}
			return ledger.ErrDuplicateNumber
		}
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read inserted id: %w", err)
	}
	e.ID = id
	return nil
}

// InsertEntries persists a batch inside one transaction. All-or-nothing: on
// failure the caller falls back to per-entry inserts.
func (s *Store) InsertEntries(ctx context.Context, es []*ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range es {
		if err := s.insert(ctx, tx, e); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Entries returns all entries ordered by creation time then id.
func (s *Store) Entries(ctx context.Context) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx, `
		SELECT id, entry_number, account_type, direction, amount, description,
		       source_kind, source_id, occurred_at, created_at
		FROM ledger_entries
		ORDER BY created_at ASC, id ASC
	`)
}

// EntriesByAccount returns all entries for one account, same order.
func (s *Store) EntriesByAccount(ctx context.Context, account ledger.AccountType) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEntries(ctx, `
		SELECT id, entry_number, account_type, direction, amount, description,
		       source_kind, source_id, occurred_at, created_at
		FROM ledger_entries
		WHERE account_type = ?
		ORDER BY created_at ASC, id ASC
	`, string(account))
}

// LedgerSourceIDs returns the set of source ids present for a synced kind.
func (s *Store) LedgerSourceIDs(ctx context.Context, kind ledger.SourceKind) (map[int64]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id FROM ledger_entries WHERE source_kind = ?", string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger source ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// NumberExists checks whether an entry number is already taken.
func (s *Store) NumberExists(ctx context.Context, number string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_entries WHERE entry_number = ?", number,
	).Scan(&count)
	return count > 0, err
}

// SetSourceID patches an entry's source_id (transfer back-references only).
func (s *Store) SetSourceID(ctx context.Context, entryID, sourceID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE ledger_entries SET source_id = ? WHERE id = ?", sourceID, entryID)
	if err != nil {
		return fmt.Errorf("failed to set source id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

// DeleteEntries removes entries by id (duplicate reconciler only).
func (s *Store) DeleteEntries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM ledger_entries WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		var (
			e                      ledger.Entry
			amount                 string
			description            sql.NullString
			occurredAt, createdAt  string
			account, direction, kd string
		)
		if err := rows.Scan(&e.ID, &e.Number, &account, &direction, &amount,
			&description, &kd, &e.SourceID, &occurredAt, &createdAt); err != nil {
			return nil, err
		}
		e.Account = ledger.AccountType(account)
		e.Direction = ledger.Direction(direction)
		e.SourceKind = ledger.SourceKind(kd)
		e.Description = description.String
		e.Amount = mustDecimal(amount)
		e.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// SOURCE READER (ledger.SourceReader interface)
// =============================================================================

func sourceTable(kind ledger.SourceKind) (string, error) {
	switch kind {
	case ledger.SourcePayment:
		return "payments", nil
	case ledger.SourceExpense:
		return "expenses", nil
	case ledger.SourcePurchase:
		return "purchases", nil
	}
	return "", fmt.Errorf("no source table for kind %q", kind)
}

// SourceIDs returns every record id for a kind in one query.
func (s *Store) SourceIDs(ctx context.Context, kind ledger.SourceKind) ([]int64, error) {
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM "+table+" ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query %s ids: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SourceRecords fetches specific records by id. Ids deleted since the diff
// are silently omitted.
func (s *Store) SourceRecords(ctx context.Context, kind ledger.SourceKind, ids []int64) ([]ledger.SourceRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, amount, occurred_at, account_hint, items_json, reference FROM "+
			table+" WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", table, err)
	}
	defer rows.Close()

	var recs []ledger.SourceRecord
	for rows.Next() {
		var (
			rec             ledger.SourceRecord
			amount          string
			occurredAt      string
			hint, items, rf sql.NullString
		)
		if err := rows.Scan(&rec.ID, &amount, &occurredAt, &hint, &items, &rf); err != nil {
			return nil, err
		}
		rec.Amount = mustDecimal(amount)
		rec.OccurredAt, _ = time.Parse(time.RFC3339, occurredAt)
		rec.AccountHint = hint.String
		rec.Reference = rf.String
		if items.Valid && items.String != "" {
			_ = json.Unmarshal([]byte(items.String), &rec.Items)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
