package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/ledger-engine/api"
	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*store.Memory, *store.MemorySources, *httptest.Server) {
	t.Helper()
	st := store.NewMemory()
	sources := store.NewMemorySources()
	handler := api.NewHandler(st, sources)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return st, sources, server
}

func seedCash(st *store.Memory, id int64, amount int64, occurred time.Time) {
	st.Seed(ledger.Entry{
		Number: "LED-SEED-" + time.Now().Format("150405") + "-" + decimal.NewFromInt(id).String(),
		Account: ledger.AccountCash, Direction: ledger.In,
		Amount: decimal.NewFromInt(amount), SourceKind: ledger.SourcePayment,
		SourceID: id, OccurredAt: occurred, CreatedAt: occurred,
	})
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func postJSON(t *testing.T, url string, body any, out any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestGetSummary(t *testing.T) {
	st, _, server := newTestServer(t)
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	seedCash(st, 1, 1000, base)

	var resp api.SummaryResponse
	r := getJSON(t, server.URL+"/api/accounts/summary", &resp)
	assert.Equal(t, http.StatusOK, r.StatusCode)

	require.Len(t, resp.Accounts, len(ledger.AllAccounts), "all accounts appear even with no entries")
	byAccount := map[string]api.AccountBalanceDTO{}
	for _, a := range resp.Accounts {
		byAccount[a.Account] = a
	}
	assert.Equal(t, "1000", byAccount["cash"].Balance)
	assert.Equal(t, "0", byAccount["mpesa"].Balance)
	assert.Equal(t, "1000", resp.Total)
}

// =============================================================================
// ENTRIES + RUNNING BALANCES
// =============================================================================

func TestGetEntries_NewestFirstWithChronologicalRunningBalances(t *testing.T) {
	st, _, server := newTestServer(t)
	base := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	seedCash(st, 1, 100, base)
	st.Seed(ledger.Entry{
		Number: "LED-OUT", Account: ledger.AccountCash, Direction: ledger.Out,
		Amount: decimal.NewFromInt(40), SourceKind: ledger.SourceExpense,
		SourceID: 2, OccurredAt: base.Add(time.Hour), CreatedAt: base.Add(time.Hour),
	})

	var resp api.EntriesResponse
	getJSON(t, server.URL+"/api/entries?account=cash", &resp)

	require.Equal(t, 2, resp.Count)
	// Display newest-first…
	assert.Equal(t, "LED-OUT", resp.Entries[0].Number)
	// …but running balances folded oldest-first: 100 then 60.
	assert.Equal(t, "60", resp.Entries[0].RunningBalance)
	assert.Equal(t, "100", resp.Entries[1].RunningBalance)
}

func TestGetEntries_FilterValidation(t *testing.T) {
	_, _, server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/entries?account=dogecoin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(server.URL + "/api/entries?from=notadate")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// TRANSFERS
// =============================================================================

func TestCreateTransfer(t *testing.T) {
	st, _, server := newTestServer(t)
	seedCash(st, 1, 1000, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	var resp api.TransferResponse
	r := postJSON(t, server.URL+"/api/transfers", api.TransferRequest{
		From: "cash", To: "mpesa", Amount: "300", Description: "float",
	}, &resp)

	assert.Equal(t, http.StatusCreated, r.StatusCode)
	assert.Equal(t, "out", resp.Out.Direction)
	assert.Equal(t, "in", resp.In.Direction)
	assert.Equal(t, resp.In.ID, resp.Out.SourceID)
	assert.Equal(t, resp.Out.ID, resp.In.SourceID)
}

func TestCreateTransfer_InsufficientFundsIs409(t *testing.T) {
	st, _, server := newTestServer(t)
	seedCash(st, 1, 1000, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))

	r := postJSON(t, server.URL+"/api/transfers", api.TransferRequest{
		From: "cash", To: "mpesa", Amount: "5000",
	}, nil)
	assert.Equal(t, http.StatusConflict, r.StatusCode)
}

func TestCreateTransfer_Validation(t *testing.T) {
	_, _, server := newTestServer(t)

	cases := []api.TransferRequest{
		{From: "cash", To: "cash", Amount: "10"},
		{From: "wallet", To: "mpesa", Amount: "10"},
		{From: "cash", To: "mpesa", Amount: "ten"},
		{From: "cash", To: "mpesa", Amount: "-5"},
	}
	for _, req := range cases {
		r := postJSON(t, server.URL+"/api/transfers", req, nil)
		assert.Equal(t, http.StatusBadRequest, r.StatusCode, "req %+v", req)
	}
}

// =============================================================================
// SYNC
// =============================================================================

func TestForceSyncEndpoint(t *testing.T) {
	_, sources, server := newTestServer(t)
	sources.Add(ledger.SourcePayment, ledger.SourceRecord{
		ID: 1, Amount: decimal.NewFromInt(1000), AccountHint: "Cash",
		OccurredAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})

	var report api.SyncReportDTO
	r := postJSON(t, server.URL+"/api/sync", nil, &report)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.True(t, report.Ran)
	assert.Equal(t, 1, report.TotalCreated)

	// The maybe endpoint lands in the cooldown and reports a clean skip.
	var second api.SyncReportDTO
	r = postJSON(t, server.URL+"/api/sync/maybe", nil, &second)
	assert.Equal(t, http.StatusOK, r.StatusCode)
	assert.False(t, second.Ran)
}

// =============================================================================
// ANOMALIES
// =============================================================================

func TestGetAnomalies(t *testing.T) {
	st, _, server := newTestServer(t)
	st.Seed(ledger.Entry{
		Number: "LED-ORPHAN", Account: ledger.AccountCash, Direction: ledger.Out,
		Amount: decimal.NewFromInt(10), SourceKind: ledger.SourceTransfer,
		OccurredAt: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})

	var resp api.AnomaliesResponse
	getJSON(t, server.URL+"/api/anomalies", &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "LED-ORPHAN", resp.OrphanTransferLegs[0].Number)
}
