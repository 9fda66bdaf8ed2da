/*
balance.go - Aggregate and running-balance projection

PURPOSE:
  Derives what callers actually display: per-account totals (in/out/net) over
  the full entry set, and a chronological running balance over an arbitrary
  filtered subset.

KEY INSIGHT:
  The running balance must be folded in CHRONOLOGICAL order no matter what
  order the caller displays (typically newest-first). The fold is recomputed
  from scratch for whatever subset the caller filtered down to, never
  incrementally patched, so filtering can never desynchronize the fold from
  the visible set.

REQUIRED PROPERTY:
  For a subset spanning exactly one account, the running balance of the
  chronologically last entry equals Aggregate(subset)[account].Balance.
  balance_test.go holds this.

PURITY:
  Both projections are pure functions of their input slice. No I/O, no
  stored state, deterministic regardless of input order.

SEE ALSO:
  - types.go: AccountBalance
  - api/: Callers that pair these with filtered store reads
*/
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE - Per-account totals
// =============================================================================

// Aggregate folds entries into per-account balances. Every known account is
// seeded at zero, so accounts with no entries still appear. Order of the
// input is irrelevant.
func Aggregate(entries []Entry) map[AccountType]AccountBalance {
	balances := make(map[AccountType]AccountBalance, len(AllAccounts))
	for _, account := range AllAccounts {
		balances[account] = AccountBalance{
			Account:  account,
			TotalIn:  decimal.Zero,
			TotalOut: decimal.Zero,
			Balance:  decimal.Zero,
		}
	}

	for _, e := range entries {
		b, ok := balances[e.Account]
		if !ok {
			b = AccountBalance{Account: e.Account, TotalIn: decimal.Zero, TotalOut: decimal.Zero}
		}
		switch e.Direction {
		case In:
			b.TotalIn = b.TotalIn.Add(e.Amount)
		case Out:
			b.TotalOut = b.TotalOut.Add(e.Amount)
		}
		b.Balance = b.TotalIn.Sub(b.TotalOut)
		balances[e.Account] = b
	}
	return balances
}

// TotalBalance sums the net balance across all accounts. Transfers conserve
// this sum; transfer_test.go holds that property.
func TotalBalance(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, b := range Aggregate(entries) {
		total = total.Add(b.Balance)
	}
	return total
}

// =============================================================================
// RUNNING BALANCES - Chronological fold over a filtered subset
// =============================================================================

// RunningBalances computes the post-entry cumulative total for each entry in
// the subset, keyed by entry id so the caller can look values up in whatever
// display order it uses. The input may be any filtered subset in any order;
// the fold always runs oldest-first (OccurredAt, then CreatedAt, then ID as
// tiebreaks).
func RunningBalances(entries []Entry) map[int64]decimal.Decimal {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	balances := make(map[int64]decimal.Decimal, len(ordered))
	running := decimal.Zero
	for _, e := range ordered {
		switch e.Direction {
		case In:
			running = running.Add(e.Amount)
		case Out:
			running = running.Sub(e.Amount)
		}
		balances[e.ID] = running
	}
	return balances
}

// Chronological returns a copy of entries in oldest-first fold order. Useful
// to callers that display the fold itself rather than looking balances up.
func Chronological(entries []Entry) []Entry {
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.Before(b.OccurredAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return ordered
}
