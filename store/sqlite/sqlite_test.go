package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *Store {
	st, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedPayment(t *testing.T, st *Store, id int64, amount, hint, reference string) {
	_, err := st.db.Exec(
		`INSERT INTO payments (id, amount, occurred_at, account_hint, items_json, reference)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, amount, time.Now().UTC().Format(time.RFC3339), hint, `["Item A","Item B"]`, reference)
	require.NoError(t, err)
}

func seedExpense(t *testing.T, st *Store, id int64, amount, hint string) {
	_, err := st.db.Exec(
		`INSERT INTO expenses (id, amount, occurred_at, account_hint, items_json, reference)
		 VALUES (?, ?, ?, ?, NULL, ?)`,
		id, amount, time.Now().UTC().Format(time.RFC3339), hint, "EXP-1")
	require.NoError(t, err)
}

func testEntry(number string, kind ledger.SourceKind, sourceID int64) *ledger.Entry {
	return &ledger.Entry{
		Number:     number,
		Account:    ledger.AccountCash,
		Direction:  ledger.In,
		Amount:     decimal.NewFromInt(100),
		SourceKind: kind,
		SourceID:   sourceID,
		OccurredAt: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// UNIQUENESS CONSTRAINTS - The idempotency backstop
// =============================================================================

func TestInsertEntry_DuplicateNumberRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-1", ledger.SourcePayment, 1)))

	err := st.InsertEntry(ctx, testEntry("LED-1", ledger.SourcePayment, 2))
	assert.ErrorIs(t, err, ledger.ErrDuplicateNumber)
}

func TestInsertEntry_DuplicateSourceRejected(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-1", ledger.SourcePayment, 1)))

	err := st.InsertEntry(ctx, testEntry("LED-2", ledger.SourcePayment, 1))
	assert.ErrorIs(t, err, ledger.ErrDuplicateSource)
}

func TestInsertEntry_TransfersExemptFromSourceKey(t *testing.T) {
	// Transfer legs reuse source_id for their pair; two with the same value
	// must both insert.
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-1", ledger.SourceTransfer, 0)))
	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-2", ledger.SourceTransfer, 0)))
}

func TestInsertEntries_BatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-1", ledger.SourcePayment, 1)))

	// Second element collides; the whole batch must roll back.
	batch := []*ledger.Entry{
		testEntry("LED-2", ledger.SourcePayment, 2),
		testEntry("LED-3", ledger.SourcePayment, 1),
	}
	err := st.InsertEntries(ctx, batch)
	require.Error(t, err)

	entries, err := st.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed batch must not leave partial rows")
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestInsertEntry_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	in := testEntry("LED-1", ledger.SourceExpense, 42)
	in.Account = ledger.AccountCooperativeBank
	in.Direction = ledger.Out
	in.Amount = decimal.RequireFromString("123.45")
	in.Description = "Cement 50kg, Steel rods"
	require.NoError(t, st.InsertEntry(ctx, in))
	assert.NotZero(t, in.ID, "insert must assign the row id")

	entries, err := st.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, in.Number, got.Number)
	assert.Equal(t, ledger.AccountCooperativeBank, got.Account)
	assert.Equal(t, ledger.Out, got.Direction)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("123.45")))
	assert.Equal(t, "Cement 50kg, Steel rods", got.Description)
	assert.Equal(t, int64(42), got.SourceID)
	assert.True(t, got.OccurredAt.Equal(in.OccurredAt))
}

func TestLedgerSourceIDs(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-1", ledger.SourcePayment, 1)))
	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-2", ledger.SourcePayment, 3)))
	require.NoError(t, st.InsertEntry(ctx, testEntry("LED-3", ledger.SourceExpense, 1)))

	ids, err := st.LedgerSourceIDs(ctx, ledger.SourcePayment)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 3: true}, ids)
}

func TestSetSourceID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	e := testEntry("LED-1", ledger.SourceTransfer, 0)
	require.NoError(t, st.InsertEntry(ctx, e))
	require.NoError(t, st.SetSourceID(ctx, e.ID, 99))

	entries, err := st.Entries(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), entries[0].SourceID)

	assert.ErrorIs(t, st.SetSourceID(ctx, 12345, 1), ledger.ErrEntryNotFound)
}

func TestDeleteEntries(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	a := testEntry("LED-1", ledger.SourcePayment, 1)
	b := testEntry("LED-2", ledger.SourcePayment, 2)
	require.NoError(t, st.InsertEntry(ctx, a))
	require.NoError(t, st.InsertEntry(ctx, b))
	require.NoError(t, st.DeleteEntries(ctx, []int64{a.ID}))

	entries, err := st.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "LED-2", entries[0].Number)
}

// =============================================================================
// SOURCE READER
// =============================================================================

func TestSourceReader_IDsAndRecords(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedPayment(t, st, 1, "1000", "Cash", "PAY-001")
	seedPayment(t, st, 2, "250.50", "M-Pesa", "PAY-002")
	seedExpense(t, st, 7, "400", "Cooperative Bank")

	ids, err := st.SourceIDs(ctx, ledger.SourcePayment)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	recs, err := st.SourceRecords(ctx, ledger.SourcePayment, []int64{1, 2, 999})
	require.NoError(t, err)
	require.Len(t, recs, 2, "missing ids are omitted, not errors")
	assert.True(t, recs[0].Amount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, []string{"Item A", "Item B"}, recs[0].Items)
	assert.Equal(t, "PAY-001", recs[0].Reference)

	expenseIDs, err := st.SourceIDs(ctx, ledger.SourceExpense)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, expenseIDs)
}

// =============================================================================
// END TO END - Full sync pass against SQLite
// =============================================================================

func TestSyncAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedPayment(t, st, 1, "1000", "Cash", "PAY-001")
	seedExpense(t, st, 2, "400", "Cooperative Bank")

	coord := ledger.NewCoordinator(st, st)

	report, err := coord.ForceSync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalCreated())

	// Idempotency against the real constraints.
	report, err = coord.ForceSync(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.TotalCreated())

	entries, err := st.Entries(ctx)
	require.NoError(t, err)
	balances := ledger.Aggregate(entries)
	assert.True(t, balances[ledger.AccountCash].Balance.Equal(decimal.NewFromInt(1000)))
	assert.True(t, balances[ledger.AccountCooperativeBank].Balance.Equal(decimal.NewFromInt(-400)))
}

func TestTransferAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedPayment(t, st, 1, "1000", "Cash", "PAY-001")

	coord := ledger.NewCoordinator(st, st)
	_, err := coord.ForceSync(ctx)
	require.NoError(t, err)

	transfers := ledger.NewTransfers(st, coord.Writer())
	outLeg, inLeg, err := transfers.Transfer(ctx, ledger.AccountCash, ledger.AccountMpesa,
		decimal.NewFromInt(300), "float")
	require.NoError(t, err)
	assert.Equal(t, inLeg.ID, outLeg.SourceID)
	assert.Equal(t, outLeg.ID, inLeg.SourceID)

	entries, err := st.Entries(ctx)
	require.NoError(t, err)
	assert.True(t, ledger.TotalBalance(entries).Equal(decimal.NewFromInt(1000)),
		"transfers must conserve the total across accounts")
}
