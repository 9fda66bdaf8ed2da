/*
writer.go - Converts source records into persisted ledger entries

PURPOSE:
  The writer is the single path by which a source record becomes a ledger
  entry: classify its account and direction, build its description, assign a
  fresh entry number, and insert.

CONFLICT HANDLING:
  Two unique keys can reject an insert, and they mean different things:
  - ErrDuplicateNumber: the generated number collided. Retried up to
    maxNumberRetries with a fresh number each time.
  - ErrDuplicateSource: the (kind, source id) pair already has an entry.
    The record is already synced. Reported as ErrDuplicateSource so the
    coordinator counts a skip, never retried.
  Any other failure is returned as a WriteError and NOT retried within the
  pass: the record stays missing and the next diff picks it up again, which
  is safe because creation is idempotent.

BATCHES:
  WriteBatch tries one batch insert first. If the batch fails for any reason
  it falls back to per-record writes so a single bad record cannot block the
  rest of the batch.

SEE ALSO:
  - classify.go: Account/direction/description rules
  - entrynum.go: Number generation
  - sync.go: The caller
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// maxNumberRetries bounds insert attempts on entry-number collisions.
const maxNumberRetries = 3

// =============================================================================
// ENTRY WRITER
// =============================================================================

// Writer persists source records as ledger entries.
type Writer struct {
	store   Store
	numbers *NumberGenerator
}

// NewWriter creates a writer over the given store.
func NewWriter(store Store) *Writer {
	return &Writer{store: store, numbers: NewNumberGenerator(store)}
}

// Write converts one source record of the given kind into a ledger entry and
// persists it. Exactly one entry is created per successful call; the source
// record is never mutated.
func (w *Writer) Write(ctx context.Context, kind SourceKind, rec SourceRecord) (*Entry, error) {
	if !kind.Synced() {
		return nil, fmt.Errorf("writer cannot sync kind %q", kind)
	}

	entry := &Entry{
		Account:     ClassifyAccount(rec.AccountHint),
		Direction:   ClassifyDirection(kind),
		Amount:      rec.Amount.Abs(),
		Description: Describe(rec),
		SourceKind:  kind,
		SourceID:    rec.ID,
		OccurredAt:  rec.OccurredAt,
	}

	if err := w.insert(ctx, entry); err != nil {
		if errors.Is(err, ErrDuplicateSource) {
			return nil, err // already synced, caller counts a skip
		}
		return nil, &WriteError{Kind: kind, SourceID: rec.ID, Err: err}
	}
	return entry, nil
}

// WriteBatch persists a batch of records for one kind, batch-first with a
// per-record fallback. It returns the entries created plus skip/failure
// counts; per-record errors never abort the batch.
func (w *Writer) WriteBatch(ctx context.Context, kind SourceKind, recs []SourceRecord) (created []*Entry, skipped, failed int, err error) {
	entries := make([]*Entry, 0, len(recs))
	for _, rec := range recs {
		number, nerr := w.numbers.Next(ctx)
		if nerr != nil {
			return nil, 0, 0, nerr
		}
		entries = append(entries, &Entry{
			Number:      number,
			Account:     ClassifyAccount(rec.AccountHint),
			Direction:   ClassifyDirection(kind),
			Amount:      rec.Amount.Abs(),
			Description: Describe(rec),
			SourceKind:  kind,
			SourceID:    rec.ID,
			OccurredAt:  rec.OccurredAt,
		})
	}

	if berr := w.store.InsertEntries(ctx, entries); berr == nil {
		return entries, 0, 0, nil
	}

	// Batch failed: write one at a time so one bad record doesn't block the rest.
	created = created[:0]
	for _, rec := range recs {
		entry, werr := w.Write(ctx, kind, rec)
		switch {
		case werr == nil:
			created = append(created, entry)
		case errors.Is(werr, ErrDuplicateSource):
			skipped++
		default:
			failed++
		}
	}
	return created, skipped, failed, nil
}

// insert assigns a number and inserts, retrying only on number collisions.
func (w *Writer) insert(ctx context.Context, entry *Entry) error {
	return attempt(ctx, maxNumberRetries, func() error {
		number, err := w.numbers.Next(ctx)
		if err != nil {
			return err
		}
		entry.Number = number
		return w.store.InsertEntry(ctx, entry)
	}, func(err error) bool {
		return errors.Is(err, ErrDuplicateNumber)
	})
}
