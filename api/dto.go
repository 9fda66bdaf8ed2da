/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// BALANCES
// =============================================================================

// AccountBalanceDTO is one account's derived totals.
type AccountBalanceDTO struct {
	Account  string `json:"account"`
	TotalIn  string `json:"total_in"`
	TotalOut string `json:"total_out"`
	Balance  string `json:"balance"`
}

// SummaryResponse is the account-summary payload: every account's balance
// plus the net total across accounts.
type SummaryResponse struct {
	Accounts []AccountBalanceDTO `json:"accounts"`
	Total    string              `json:"total"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// EntryDTO is one ledger entry with its display running balance. The running
// balance is recomputed per request over the filtered set, never read from
// storage.
type EntryDTO struct {
	ID             int64  `json:"id"`
	Number         string `json:"number"`
	Account        string `json:"account"`
	Direction      string `json:"direction"`
	Amount         string `json:"amount"`
	Description    string `json:"description,omitempty"`
	SourceKind     string `json:"source_kind"`
	SourceID       int64  `json:"source_id,omitempty"`
	OccurredAt     string `json:"occurred_at"`
	RunningBalance string `json:"running_balance"`
}

// EntriesResponse wraps a filtered, newest-first entry listing.
type EntriesResponse struct {
	Entries []EntryDTO `json:"entries"`
	Count   int        `json:"count"`
}

func entryDTO(e ledger.Entry, running string) EntryDTO {
	return EntryDTO{
		ID:             e.ID,
		Number:         e.Number,
		Account:        string(e.Account),
		Direction:      string(e.Direction),
		Amount:         e.Amount.String(),
		Description:    e.Description,
		SourceKind:     string(e.SourceKind),
		SourceID:       e.SourceID,
		OccurredAt:     e.OccurredAt.Format(time.RFC3339),
		RunningBalance: running,
	}
}

// =============================================================================
// TRANSFERS
// =============================================================================

// TransferRequest asks to move funds between two accounts.
type TransferRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// TransferResponse returns both legs of a successful transfer.
type TransferResponse struct {
	Out EntryDTO `json:"out"`
	In  EntryDTO `json:"in"`
}

// =============================================================================
// SYNC
// =============================================================================

// SyncReportDTO summarizes one reconciliation pass for the caller.
type SyncReportDTO struct {
	Ran              bool           `json:"ran"`
	DuplicatesPurged int            `json:"duplicates_purged"`
	Created          map[string]int `json:"created,omitempty"`
	Skipped          map[string]int `json:"skipped,omitempty"`
	Failed           map[string]int `json:"failed,omitempty"`
	TotalCreated     int            `json:"total_created"`
	TotalFailed      int            `json:"total_failed"`
}

func syncReportDTO(r ledger.SyncReport) SyncReportDTO {
	dto := SyncReportDTO{
		Ran:              r.Ran,
		DuplicatesPurged: r.DuplicatesPurged,
		TotalCreated:     r.TotalCreated(),
		TotalFailed:      r.TotalFailed(),
	}
	if len(r.Created) > 0 {
		dto.Created = kindCounts(r.Created)
	}
	if len(r.Skipped) > 0 {
		dto.Skipped = kindCounts(r.Skipped)
	}
	if len(r.Failed) > 0 {
		dto.Failed = kindCounts(r.Failed)
	}
	return dto
}

func kindCounts(m map[ledger.SourceKind]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[string(k)] = v
	}
	return out
}

// =============================================================================
// CONSISTENCY
// =============================================================================

// AnomaliesResponse lists one-sided transfer legs awaiting operator review.
type AnomaliesResponse struct {
	OrphanTransferLegs []EntryDTO `json:"orphan_transfer_legs"`
	Count              int        `json:"count"`
}
