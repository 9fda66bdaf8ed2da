/*
Package postgres provides a PostgreSQL-backed implementation of the storage
interfaces.

PURPOSE:
  Same contract as store/sqlite on lib/pq: ledger.Store over the derived
  ledger table, ledger.SourceReader over the payments/expenses/purchases
  tables. Uniqueness violations are mapped to the package sentinels via the
  pq error code and constraint name, which is more precise than the string
  matching SQLite forces.

CONCURRENCY:
  No store-level mutex. PostgreSQL's own concurrency control handles
  concurrent writers; the unique constraints remain the cross-process
  idempotency backstop.

USAGE:
  db, err := sql.Open("postgres", dsn)
  st := postgres.New(db)
  if err := st.Migrate(ctx); err != nil { ... }

SEE ALSO:
  - ledger/store.go: Interface contracts
  - store/sqlite: SQLite implementation
*/
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

const uniqueViolation = "23505"

// Store implements ledger.Store and ledger.SourceReader on PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an open *sql.DB. The caller owns the connection's lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the ledger table and indexes. The source tables belong to
// the surrounding application and are expected to exist already.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id BIGSERIAL PRIMARY KEY,
		entry_number TEXT NOT NULL,
		account_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		amount NUMERIC(20, 4) NOT NULL,
		description TEXT,
		source_kind TEXT NOT NULL,
		source_id BIGINT NOT NULL DEFAULT 0,
		occurred_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT ledger_entry_number_unique UNIQUE (entry_number)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS ledger_source_unique
		ON ledger_entries(source_kind, source_id)
		WHERE source_kind IN ('payment', 'expense', 'purchase');

	CREATE INDEX IF NOT EXISTS ledger_account_idx
		ON ledger_entries(account_type, created_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

func (s *Store) InsertEntry(ctx context.Context, e *ledger.Entry) error {
	return s.insert(ctx, s.db, e)
}

func (s *Store) insert(ctx context.Context, db interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, e *ledger.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO ledger_entries
		(entry_number, account_type, direction, amount, description, source_kind,
		 source_id, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := db.QueryRowContext(ctx, query,
		e.Number,
		string(e.Account),
		string(e.Direction),
		e.Amount.String(),
		e.Description,
		string(e.SourceKind),
		e.SourceID,
		e.OccurredAt.UTC(),
		e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		if pqErr.Constraint == "ledger_source_unique" {
			return ledger.ErrDuplicateSource
		}
		return ledger.ErrDuplicateNumber
	}
	return fmt.Errorf("failed to insert entry: %w", err)
}

func (s *Store) InsertEntries(ctx context.Context, es []*ledger.Entry) error {
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

func (s *Store) Entries(ctx context.Context) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT id, entry_number, account_type, direction, amount, description,
		       source_kind, source_id, occurred_at, created_at
		FROM ledger_entries
		ORDER BY created_at ASC, id ASC
	`)
}

func (s *Store) EntriesByAccount(ctx context.Context, account ledger.AccountType) ([]ledger.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT id, entry_number, account_type, direction, amount, description,
		       source_kind, source_id, occurred_at, created_at
		FROM ledger_entries
		WHERE account_type = $1
		ORDER BY created_at ASC, id ASC
	`, string(account))
}

func (s *Store) LedgerSourceIDs(ctx context.Context, kind ledger.SourceKind) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id FROM ledger_entries WHERE source_kind = $1", string(kind))
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

func (s *Store) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM ledger_entries WHERE entry_number = $1)", number,
	).Scan(&exists)
	return exists, err
}

func (s *Store) SetSourceID(ctx context.Context, entryID, sourceID int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE ledger_entries SET source_id = $1 WHERE id = $2", sourceID, entryID)
	if err != nil {
		return fmt.Errorf("failed to set source id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) DeleteEntries(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM ledger_entries WHERE id = ANY($1)", pq.Array(ids))
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
			account, direction, kd string
		)
		if err := rows.Scan(&e.ID, &e.Number, &account, &direction, &amount,
			&description, &kd, &e.SourceID, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Account = ledger.AccountType(account)
		e.Direction = ledger.Direction(direction)
		e.SourceKind = ledger.SourceKind(kd)
		e.Description = description.String
		e.Amount, _ = decimal.NewFromString(amount)
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

func (s *Store) SourceIDs(ctx context.Context, kind ledger.SourceKind) ([]int64, error) {
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

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

func (s *Store) SourceRecords(ctx context.Context, kind ledger.SourceKind, ids []int64) ([]ledger.SourceRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, amount, occurred_at, account_hint, items_json, reference FROM "+
			table+" WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s records: %w", table, err)
	}
	defer rows.Close()

	var recs []ledger.SourceRecord
	for rows.Next() {
		var (
			rec             ledger.SourceRecord
			amount          string
			hint, items, rf sql.NullString
		)
		if err := rows.Scan(&rec.ID, &amount, &rec.OccurredAt, &hint, &items, &rf); err != nil {
			return nil, err
		}
		rec.Amount, _ = decimal.NewFromString(amount)
		rec.AccountHint = hint.String
		rec.Reference = rf.String
		if items.Valid && strings.TrimSpace(items.String) != "" {
			_ = json.Unmarshal([]byte(items.String), &rec.Items)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
