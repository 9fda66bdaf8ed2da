/*
Package ledger provides the account ledger synchronization and balance engine.

PURPOSE:
  This package contains the types and algorithms that keep a derived,
  append-mostly transaction ledger consistent with three independently
  mutated source tables (payments, expenses, purchases), compute per-account
  aggregate and chronological running balances, and record inter-account
  transfers as linked double-entry pairs.

KEY CONCEPTS IN THIS FILE (types.go):
  - AccountType: The fixed set of business accounts funds move through
  - Direction:   Whether an entry moves money in or out of its account
  - SourceKind:  Which source table (or transfer) an entry derives from
  - Entry:       One immutable record of value movement
  - SourceRecord: A read-only view of an externally-owned business document

DESIGN PRINCIPLES:
  1. Derived, not authoritative: balances are always recomputed from entries
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Idempotency: (SourceKind, SourceID) is unique for synced entries, so
     re-running synchronization never duplicates an entry
  4. The store's unique constraints are the cross-process backstop; in-process
     guards are an optimization, not the correctness mechanism

USAGE:
  entry := ledger.Entry{
      Account:   ledger.AccountCash,
      Direction: ledger.In,
      Amount:    decimal.NewFromInt(1000),
      SourceKind: ledger.SourcePayment,
      SourceID:  42,
  }

SEE ALSO:
  - sync.go: Coordinator that reconciles sources into the ledger
  - balance.go: Aggregate and running-balance projection
  - store.go: Persistence interfaces
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT TYPE - The fixed set of business accounts
// =============================================================================

type AccountType string

const (
	AccountCash            AccountType = "cash"
	AccountCooperativeBank AccountType = "cooperative_bank"
	AccountCredit          AccountType = "credit"
	AccountCheque          AccountType = "cheque"
	AccountMpesa           AccountType = "mpesa"
	AccountPettyCash       AccountType = "petty_cash"
)

// AllAccounts lists every known account type. Balance projections seed all of
// them at zero so an account with no entries still reports a balance.
var AllAccounts = []AccountType{
	AccountCash,
	AccountCooperativeBank,
	AccountCredit,
	AccountCheque,
	AccountMpesa,
	AccountPettyCash,
}

// Valid reports whether a is one of the known account types.
func (a AccountType) Valid() bool {
	for _, known := range AllAccounts {
		if a == known {
			return true
		}
	}
	return false
}

// =============================================================================
// DIRECTION - Money in or out of an account
// =============================================================================

type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// =============================================================================
// SOURCE KIND - Which source table an entry derives from
// =============================================================================

type SourceKind string

const (
	SourcePayment  SourceKind = "payment"
	SourceExpense  SourceKind = "expense"
	SourcePurchase SourceKind = "purchase"
	SourceTransfer SourceKind = "transfer"
)

// SyncedKinds are the kinds reconciled from source tables. Transfers are
// created directly and are exempt from the (kind, source id) uniqueness key.
var SyncedKinds = []SourceKind{SourcePayment, SourceExpense, SourcePurchase}

// Synced reports whether entries of this kind are derived from a source table.
func (k SourceKind) Synced() bool {
	return k == SourcePayment || k == SourceExpense || k == SourcePurchase
}

// =============================================================================
// ENTRY - One immutable record of value movement
// =============================================================================

// Entry is the derived, authoritative record of money moving into or out of
// one account.
//
// INVARIANTS (store-enforced):
//   - Number is globally unique.
//   - (SourceKind, SourceID) is unique for synced kinds. This is the
//     idempotency key the sync coordinator relies on.
//
// For SourceKind == SourceTransfer, SourceID holds the paired entry's ID and
// is patched in after both legs are inserted (zero until then).
//
// BalanceAfter is advisory only: it is recomputed on read by the projector
// and never trusted as authoritative.
type Entry struct {
	ID          int64
	Number      string
	Account     AccountType
	Direction   Direction
	Amount      decimal.Decimal
	Description string
	SourceKind  SourceKind
	SourceID    int64
	OccurredAt  time.Time
	CreatedAt   time.Time

	BalanceAfter decimal.Decimal
}

// =============================================================================
// SOURCE RECORD - Read-only view of an externally-owned document
// =============================================================================

// SourceRecord is the subset of a payment, expense, or purchase record the
// engine reads. The record itself is created, edited, and deleted entirely
// outside this package; the engine only observes its existence.
type SourceRecord struct {
	ID          int64
	Amount      decimal.Decimal
	OccurredAt  time.Time
	AccountHint string   // free-form payment method / account text
	Items       []string // optional line items, used only for the description
	Reference   string   // human-facing record number, fallback label
}

// =============================================================================
// ACCOUNT BALANCE - Computed state, never persisted as truth
// =============================================================================

// AccountBalance is the derived aggregate for one account. It is rebuilt from
// entries on demand; any persisted copy is a cache, not a source of truth.
type AccountBalance struct {
	Account  AccountType
	TotalIn  decimal.Decimal
	TotalOut decimal.Decimal
	Balance  decimal.Decimal // TotalIn - TotalOut
}

// =============================================================================
// SYNC REPORT - Summary returned to sync callers
// =============================================================================

// SyncReport summarizes one reconciliation pass. Callers receive counts
// rather than an error per record: individual write failures do not abort
// a pass.
type SyncReport struct {
	Ran              bool // false when skipped by the single-flight or cooldown guard
	DuplicatesPurged int
	Created          map[SourceKind]int
	Failed           map[SourceKind]int
	Skipped          map[SourceKind]int // already represented in the ledger
	StartedAt        time.Time
	FinishedAt       time.Time
}

// TotalCreated returns entries created across all kinds.
func (r SyncReport) TotalCreated() int {
	n := 0
	for _, c := range r.Created {
		n += c
	}
	return n
}

// TotalSkipped returns already-synced skips across all kinds.
func (r SyncReport) TotalSkipped() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

// TotalFailed returns per-record write failures across all kinds.
func (r SyncReport) TotalFailed() int {
	n := 0
	for _, c := range r.Failed {
		n += c
	}
	return n
}
