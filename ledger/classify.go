/*
classify.go - Source record classification

PURPOSE:
  Maps a source record onto the ledger entry shape: which account the money
  moved through, which direction it moved, and a human-readable description.

THE HINT TABLE:
  Source records carry a free-form "payment method" string. Classification is
  a single explicit lookup table from the normalized hint to an AccountType,
  rather than scattered string matching. Unknown or absent hints default to
  cash instead of silently mis-bucketing funds; cash is where unattributed
  money is reviewed.

DIRECTION:
  Payments are money in; expenses and purchases are money out. Transfers are
  never classified here (the transfer coordinator sets both legs explicitly).

SEE ALSO:
  - writer.go: The only caller
  - classify_test.go: Exhaustive table coverage
*/
package ledger

import "strings"

// =============================================================================
// ACCOUNT CLASSIFICATION
// =============================================================================

// accountHints maps a normalized payment-method hint to its account.
// Normalization lowercases and strips spaces, hyphens, and underscores, so
// "M-Pesa", "MPESA" and "m pesa" all land on the same row.
var accountHints = map[string]AccountType{
	"cash":            AccountCash,
	"cooperativebank": AccountCooperativeBank,
	"coopbank":        AccountCooperativeBank,
	"bank":            AccountCooperativeBank,
	"credit":          AccountCredit,
	"creditcard":      AccountCredit,
	"cheque":          AccountCheque,
	"check":           AccountCheque,
	"mpesa":           AccountMpesa,
	"pettycash":       AccountPettyCash,
}

// ClassifyAccount resolves a free-form account hint to an AccountType.
// Unrecognized and empty hints fall back to AccountCash.
func ClassifyAccount(hint string) AccountType {
	if account, ok := accountHints[normalizeHint(hint)]; ok {
		return account
	}
	return AccountCash
}

func normalizeHint(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	var b strings.Builder
	for _, r := range hint {
		switch r {
		case ' ', '-', '_', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// DIRECTION CLASSIFICATION
// =============================================================================

// ClassifyDirection returns the movement direction for a synced source kind.
// Payments bring money in; expenses and purchases take money out.
func ClassifyDirection(kind SourceKind) Direction {
	if kind == SourcePayment {
		return In
	}
	return Out
}

// =============================================================================
// DESCRIPTION
// =============================================================================

// Describe builds the human-readable entry description from a record's line
// items, falling back to its reference number when there are none.
func Describe(rec SourceRecord) string {
	if len(rec.Items) > 0 {
		return strings.Join(rec.Items, ", ")
	}
	return rec.Reference
}
