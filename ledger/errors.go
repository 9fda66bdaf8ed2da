/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers should match with errors.Is / errors.As rather than string
  comparison.

ERROR CATEGORIES:
  1. Write conflicts - unique-constraint violations (retried locally)
  2. Read failures   - source or ledger scans (abort the current phase)
  3. Transfer errors - precondition and partial-leg failures

USAGE:
  if errors.Is(err, ledger.ErrDuplicateNumber) {
      // retry the insert with a fresh entry number
  }

SEE ALSO:
  - writer.go: Retries ErrDuplicateNumber, skips ErrDuplicateSource
  - transfer.go: Returns InsufficientFundsError and PartialTransferError
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateNumber is returned by stores when an insert collides on the
	// globally-unique entry number. The writer retries with a fresh number.
	ErrDuplicateNumber = errors.New("duplicate entry number")

	// ErrDuplicateSource is returned by stores when an insert collides on the
	// (source kind, source id) idempotency key. The entry already exists, so
	// the writer treats this as an already-synced skip, not a failure.
	ErrDuplicateSource = errors.New("source record already has a ledger entry")

	// ErrInsufficientFunds is returned when a transfer would overdraw the
	// source account. No entry is written.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSameAccount is returned when a transfer names the same account on
	// both sides.
	ErrSameAccount = errors.New("transfer source and destination are the same account")

	// ErrNonPositiveAmount is returned when a transfer amount is zero or
	// negative.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrEntryNotFound is returned when a referenced entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// WriteError wraps a failed attempt to persist one source record. The sync
// pass counts these and keeps going; the record stays "missing" and is picked
// up on the next pass.
type WriteError struct {
	Kind     SourceKind
	SourceID int64
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s/%d: %v", e.Kind, e.SourceID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// InsufficientFundsError reports how short the source account is.
type InsufficientFundsError struct {
	Account   AccountType
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds in %s: available %s, requested %s",
		e.Account, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// PartialTransferError reports a transfer where one leg was persisted and the
// other failed. The store offers no cross-row transaction, so the completed
// leg is left in place as an orphan and surfaced by the consistency check
// (Reconciler.OrphanTransferLegs). This is deliberately a distinct,
// higher-severity error: money movement must never be silently partial.
type PartialTransferError struct {
	Completed *Entry // the leg that was written
	FailedLeg Direction
	Err       error
}

func (e *PartialTransferError) Error() string {
	return fmt.Sprintf("transfer partially applied: %s leg failed after %s leg %s was written: %v",
		e.FailedLeg, e.Completed.Direction, e.Completed.Number, e.Err)
}

func (e *PartialTransferError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict reports whether err is a store uniqueness violation of any kind.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateNumber) || errors.Is(err, ErrDuplicateSource)
}

// IsClientError reports whether err is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrSameAccount) ||
		errors.Is(err, ErrNonPositiveAmount)
}
