package ledger_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func entryAt(id int64, account ledger.AccountType, dir ledger.Direction, amount int64, occurred time.Time) ledger.Entry {
	return ledger.Entry{
		ID:         id,
		Account:    account,
		Direction:  dir,
		Amount:     amt(amount),
		OccurredAt: occurred,
		CreatedAt:  occurred,
	}
}

// =============================================================================
// AGGREGATE
// =============================================================================

func TestAggregate_SeedsAllAccountsAtZero(t *testing.T) {
	balances := ledger.Aggregate(nil)

	if len(balances) != len(ledger.AllAccounts) {
		t.Fatalf("expected %d accounts, got %d", len(ledger.AllAccounts), len(balances))
	}
	for _, account := range ledger.AllAccounts {
		b, ok := balances[account]
		if !ok {
			t.Fatalf("missing account %v", account)
		}
		if !b.Balance.IsZero() || !b.TotalIn.IsZero() || !b.TotalOut.IsZero() {
			t.Errorf("account %v not zero-seeded: %+v", account, b)
		}
	}
}

func TestAggregate_InMinusOut(t *testing.T) {
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		entryAt(1, ledger.AccountCash, ledger.In, 1000, base),
		entryAt(2, ledger.AccountCash, ledger.Out, 300, base.Add(time.Hour)),
		entryAt(3, ledger.AccountMpesa, ledger.In, 50, base.Add(2*time.Hour)),
	}

	balances := ledger.Aggregate(entries)

	cash := balances[ledger.AccountCash]
	if !cash.TotalIn.Equal(amt(1000)) || !cash.TotalOut.Equal(amt(300)) || !cash.Balance.Equal(amt(700)) {
		t.Errorf("cash = %+v, want in=1000 out=300 balance=700", cash)
	}
	if !balances[ledger.AccountMpesa].Balance.Equal(amt(50)) {
		t.Errorf("mpesa balance = %v, want 50", balances[ledger.AccountMpesa].Balance)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		entryAt(1, ledger.AccountCash, ledger.In, 100, base),
		entryAt(2, ledger.AccountCash, ledger.Out, 40, base.Add(time.Hour)),
		entryAt(3, ledger.AccountCash, ledger.In, 25, base.Add(2*time.Hour)),
		entryAt(4, ledger.AccountCheque, ledger.Out, 10, base.Add(3*time.Hour)),
	}

	want := ledger.Aggregate(entries)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]ledger.Entry, len(entries))
		copy(shuffled, entries)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := ledger.Aggregate(shuffled)
		for _, account := range ledger.AllAccounts {
			if !got[account].Balance.Equal(want[account].Balance) {
				t.Fatalf("shuffle %d: account %v balance %v != %v",
					i, account, got[account].Balance, want[account].Balance)
			}
		}
	}
}

// =============================================================================
// RUNNING BALANCES
// =============================================================================

func TestRunningBalances_ChronologicalRegardlessOfInputOrder(t *testing.T) {
	// GIVEN: entries supplied newest-first (typical display order)
	base := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		entryAt(3, ledger.AccountCash, ledger.In, 25, base.Add(48*time.Hour)),
		entryAt(2, ledger.AccountCash, ledger.Out, 40, base.Add(24*time.Hour)),
		entryAt(1, ledger.AccountCash, ledger.In, 100, base),
	}

	// WHEN: computing running balances
	running := ledger.RunningBalances(entries)

	// THEN: the fold ran oldest-first: 100, 60, 85
	if !running[1].Equal(amt(100)) {
		t.Errorf("entry 1 running = %v, want 100", running[1])
	}
	if !running[2].Equal(amt(60)) {
		t.Errorf("entry 2 running = %v, want 60", running[2])
	}
	if !running[3].Equal(amt(85)) {
		t.Errorf("entry 3 running = %v, want 85", running[3])
	}
}

// Required property: for a single-account subset, the last chronological
// running balance equals the aggregate balance of the same subset.
func TestRunningBalances_LastEqualsAggregate(t *testing.T) {
	base := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	subset := []ledger.Entry{
		entryAt(10, ledger.AccountMpesa, ledger.In, 500, base),
		entryAt(11, ledger.AccountMpesa, ledger.Out, 120, base.Add(time.Hour)),
		entryAt(12, ledger.AccountMpesa, ledger.In, 75, base.Add(3*time.Hour)),
		entryAt(13, ledger.AccountMpesa, ledger.Out, 15, base.Add(2*time.Hour)),
	}

	running := ledger.RunningBalances(subset)
	chrono := ledger.Chronological(subset)
	last := chrono[len(chrono)-1]

	aggregate := ledger.Aggregate(subset)[ledger.AccountMpesa].Balance
	if !running[last.ID].Equal(aggregate) {
		t.Errorf("last running balance %v != aggregate %v", running[last.ID], aggregate)
	}
}

func TestRunningBalances_FilteredSubsetRecomputedFromScratch(t *testing.T) {
	// A filtered subset folds only its own entries; values from the full set
	// must not leak in.
	base := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)
	full := []ledger.Entry{
		entryAt(1, ledger.AccountCash, ledger.In, 1000, base),
		entryAt(2, ledger.AccountMpesa, ledger.In, 200, base.Add(time.Hour)),
		entryAt(3, ledger.AccountCash, ledger.Out, 400, base.Add(2*time.Hour)),
	}

	onlyMpesa := []ledger.Entry{full[1]}
	running := ledger.RunningBalances(onlyMpesa)
	if !running[2].Equal(amt(200)) {
		t.Errorf("filtered running = %v, want 200 (no leakage from cash entries)", running[2])
	}
	if len(running) != 1 {
		t.Errorf("filtered fold produced %d balances, want 1", len(running))
	}
}

func TestChronological_TiebreaksStable(t *testing.T) {
	at := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	entries := []ledger.Entry{
		entryAt(5, ledger.AccountCash, ledger.In, 1, at),
		entryAt(2, ledger.AccountCash, ledger.In, 1, at),
		entryAt(9, ledger.AccountCash, ledger.In, 1, at),
	}
	ordered := ledger.Chronological(entries)
	if ordered[0].ID != 2 || ordered[1].ID != 5 || ordered[2].ID != 9 {
		t.Errorf("equal timestamps must fall back to id order, got %v %v %v",
			ordered[0].ID, ordered[1].ID, ordered[2].ID)
	}
}
