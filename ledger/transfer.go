/*
transfer.go - Linked double-entry transfers between accounts

PURPOSE:
  A manual movement of funds between two accounts is recorded as two ledger
  entries: out on the source account, in on the destination, equal amount,
  same timestamp, each holding the other's id in SourceID once both exist.

PRECONDITIONS:
  - distinct accounts
  - positive amount
  - source account balance (aggregated from all entries) covers the amount

CONSERVATION:
  A successful transfer never changes the sum of balances across all
  accounts. transfer_test.go holds this.

FAILURE MODEL:
  The store offers no cross-row transaction, so the legs are inserted one at
  a time. If the first insert fails the transfer failed cleanly. If the
  SECOND insert fails, the first leg already exists: the operation returns
  PartialTransferError naming the orphan, and the orphan is surfaced by
  Reconciler.OrphanTransferLegs until an operator resolves it. No
  compensating delete is attempted: at-least-once per leg plus loud
  reporting, never silent partial money movement.

SEE ALSO:
  - dedupe.go: OrphanTransferLegs consistency check
  - errors.go: PartialTransferError, InsufficientFundsError
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSFER COORDINATOR
// =============================================================================

// Transfers creates linked double-entry transfer pairs.
type Transfers struct {
	store  Store
	writer *Writer
	now    func() time.Time // test seam
}

// NewTransfers creates a transfer coordinator sharing the given writer's
// number generator.
func NewTransfers(store Store, writer *Writer) *Transfers {
	return &Transfers{store: store, writer: writer, now: time.Now}
}

// Transfer moves amount from one account to another as a linked pair of
// entries, returning (out leg, in leg). Precondition failures write nothing.
func (t *Transfers) Transfer(ctx context.Context, from, to AccountType, amount decimal.Decimal, description string) (*Entry, *Entry, error) {
	if from == to {
		return nil, nil, ErrSameAccount
	}
	if !amount.IsPositive() {
		return nil, nil, ErrNonPositiveAmount
	}

	entries, err := t.store.Entries(ctx)
	if err != nil {
		return nil, nil, err
	}
	available := Aggregate(entries)[from].Balance
	if available.LessThan(amount) {
		return nil, nil, &InsufficientFundsError{Account: from, Available: available, Requested: amount}
	}

	occurredAt := t.now()

	outLeg := &Entry{
		Account:     from,
		Direction:   Out,
		Amount:      amount,
		Description: description,
		SourceKind:  SourceTransfer,
		OccurredAt:  occurredAt,
	}
	if err := t.insertLeg(ctx, outLeg); err != nil {
		return nil, nil, err
	}

	inLeg := &Entry{
		Account:     to,
		Direction:   In,
		Amount:      amount,
		Description: description,
		SourceKind:  SourceTransfer,
		OccurredAt:  occurredAt,
	}
	if err := t.insertLeg(ctx, inLeg); err != nil {
		// The out leg exists and cannot be rolled back here. Flag it loudly;
		// OrphanTransferLegs keeps reporting it until resolved.
		return nil, nil, &PartialTransferError{Completed: outLeg, FailedLeg: In, Err: err}
	}

	// Thread the mutual back-references now that both legs have ids.
	if err := t.store.SetSourceID(ctx, outLeg.ID, inLeg.ID); err != nil {
		return nil, nil, &PartialTransferError{Completed: outLeg, FailedLeg: Out, Err: err}
	}
	if err := t.store.SetSourceID(ctx, inLeg.ID, outLeg.ID); err != nil {
		return nil, nil, &PartialTransferError{Completed: inLeg, FailedLeg: In, Err: err}
	}
	outLeg.SourceID = inLeg.ID
	inLeg.SourceID = outLeg.ID

	return outLeg, inLeg, nil
}

// insertLeg writes one transfer leg through the writer's number-retry path.
func (t *Transfers) insertLeg(ctx context.Context, leg *Entry) error {
	return attempt(ctx, maxNumberRetries, func() error {
		number, err := t.writer.numbers.Next(ctx)
		if err != nil {
			return err
		}
		leg.Number = number
		return t.store.InsertEntry(ctx, leg)
	}, func(err error) bool {
		return errors.Is(err, ErrDuplicateNumber)
	})
}
