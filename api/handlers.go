/*
handlers.go - HTTP API handlers for the ledger engine

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET  /api/accounts/summary  Per-account totals + net total

  Entries:
    GET  /api/entries           Filtered entries, newest-first, with running
                                balances recomputed per request.
                                Filters: account, direction, kind, q,
                                from, to (RFC3339 or 2006-01-02)

  Transfers:
    POST /api/transfers         Linked double-entry transfer

  Sync:
    POST /api/sync              Force a reconciliation pass (bypasses cooldown)
    POST /api/sync/maybe        Notification-style trigger (all guards apply)

  Consistency:
    GET  /api/anomalies         One-sided transfer legs awaiting review

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 409: Insufficient funds
  - 500: Internal errors, including partial transfers (which additionally
         get logged at high visibility: money moved on one side only)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       ledger.Store
	Coordinator *ledger.Coordinator
	Transfers   *ledger.Transfers
}

// NewHandler wires a handler over a ledger store and the source tables.
func NewHandler(store ledger.Store, sources ledger.SourceReader) *Handler {
	coord := ledger.NewCoordinator(store, sources)
	return &Handler{
		Store:       store,
		Coordinator: coord,
		Transfers:   ledger.NewTransfers(store, coord.Writer()),
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// GetSummary returns every account's derived balance plus the net total.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.Entries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	balances := ledger.Aggregate(entries)
	resp := SummaryResponse{Total: ledger.TotalBalance(entries).String()}
	for _, account := range ledger.AllAccounts {
		b := balances[account]
		resp.Accounts = append(resp.Accounts, AccountBalanceDTO{
			Account:  string(account),
			TotalIn:  b.TotalIn.String(),
			TotalOut: b.TotalOut.String(),
			Balance:  b.Balance.String(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// ENTRIES
// =============================================================================

// GetEntries returns the filtered entry set newest-first, each row carrying
// the running balance of the chronological fold over that same filtered set.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Store.Entries(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	filtered, err := filterEntries(entries, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Running balances fold chronologically regardless of display order, and
	// are recomputed from scratch for this exact filtered set.
	running := ledger.RunningBalances(filtered)

	// Display newest-first.
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].OccurredAt.Equal(filtered[j].OccurredAt) {
			return filtered[i].OccurredAt.After(filtered[j].OccurredAt)
		}
		return filtered[i].ID > filtered[j].ID
	})

	resp := EntriesResponse{Count: len(filtered)}
	for _, e := range filtered {
		resp.Entries = append(resp.Entries, entryDTO(e, running[e.ID].String()))
	}
	writeJSON(w, http.StatusOK, resp)
}

func filterEntries(entries []ledger.Entry, q map[string][]string) ([]ledger.Entry, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return vs[0]
		}
		return ""
	}

	var from, to time.Time
	var err error
	if v := get("from"); v != "" {
		if from, err = parseDate(v); err != nil {
			return nil, err
		}
	}
	if v := get("to"); v != "" {
		if to, err = parseDate(v); err != nil {
			return nil, err
		}
	}
	account := get("account")
	if account != "" && !ledger.AccountType(account).Valid() {
		return nil, errors.New("unknown account: " + account)
	}
	direction := get("direction")
	kind := get("kind")
	search := strings.ToLower(get("q"))

	var out []ledger.Entry
	for _, e := range entries {
		if account != "" && string(e.Account) != account {
			continue
		}
		if direction != "" && string(e.Direction) != direction {
			continue
		}
		if kind != "" && string(e.SourceKind) != kind {
			continue
		}
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.OccurredAt.After(to) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Description), search) &&
			!strings.Contains(strings.ToLower(e.Number), search) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid date: " + v)
}

// =============================================================================
// TRANSFERS
// =============================================================================

// CreateTransfer moves funds between two accounts as a linked entry pair.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	from := ledger.AccountType(req.From)
	to := ledger.AccountType(req.To)
	if !from.Valid() || !to.Valid() {
		writeError(w, http.StatusBadRequest, errors.New("unknown account"))
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid amount: "+req.Amount))
		return
	}

	outLeg, inLeg, err := h.Transfers.Transfer(r.Context(), from, to, amount, req.Description)
	if err != nil {
		var partial *ledger.PartialTransferError
		switch {
		case errors.As(err, &partial):
			// One leg exists. This must never look like an ordinary failure.
			log.Printf("[API] PARTIAL TRANSFER: %v", err)
			writeError(w, http.StatusInternalServerError, err)
		case errors.Is(err, ledger.ErrInsufficientFunds):
			writeError(w, http.StatusConflict, err)
		case ledger.IsClientError(err):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, TransferResponse{
		Out: entryDTO(*outLeg, ""),
		In:  entryDTO(*inLeg, ""),
	})
}

// =============================================================================
// SYNC
// =============================================================================

// ForceSync runs a reconciliation pass, bypassing the cooldown guard.
func (h *Handler) ForceSync(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.Coordinator.ForceSync)
}

// MaybeSync is the notification-style trigger: all guards apply, and a
// skipped pass is a successful (ran=false) response, not an error.
func (h *Handler) MaybeSync(w http.ResponseWriter, r *http.Request) {
	h.runSync(w, r, h.Coordinator.MaybeSync)
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request,
	sync func(context.Context) (ledger.SyncReport, error)) {
	report, err := sync(r.Context())
	if err != nil {
		// Partial passes still report what they did; pair the counts with
		// the error so the caller sees both.
		log.Printf("[API] sync error: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  err.Error(),
			"report": syncReportDTO(report),
		})
		return
	}
	writeJSON(w, http.StatusOK, syncReportDTO(report))
}

// =============================================================================
// CONSISTENCY
// =============================================================================

// GetAnomalies reports one-sided transfer legs for operator review.
func (h *Handler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	orphans, err := h.Coordinator.Reconciler().OrphanTransferLegs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := AnomaliesResponse{Count: len(orphans)}
	for _, e := range orphans {
		resp.OrphanTransferLegs = append(resp.OrphanTransferLegs, entryDTO(e, ""))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
