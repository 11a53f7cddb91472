package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"cuentas/internal/services"
	"cuentas/internal/storage/memory"
)

func newTestServer() *Server {
	store := memory.New()
	return NewServer(":0", Services{
		Accounts:  services.NewAccountService(store),
		Ledger:    services.NewLedgerService(store, nil),
		Transfers: services.NewTransferService(store, nil),
		Cards:     services.NewCardService(store, nil),
		Credits:   services.NewCreditService(store, nil),
		Cycles:    services.NewCycleService(store, nil),
		Capacity:  services.NewCapacityService(store),
		Projects:  services.NewProjectService(store, store),
		Recurring: services.NewRecurringService(store, store),
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer()
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestTransactionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer()
	const userID = 10

	rr := doJSON(t, srv, http.MethodPost, "/projects", userID, map[string]any{"name": "household"})
	require.Equal(t, http.StatusCreated, rr.Code)
	projectID := decodeBody[map[string]int64](t, rr)["project_id"]
	require.NotZero(t, projectID)

	rr = doJSON(t, srv, http.MethodPost, "/accounts", userID, map[string]any{
		"project_id": projectID,
		"name":       "checking",
		"type":       "checking",
		"currency":   "ARS",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	account := decodeBody[accountJSON](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/transactions", userID, map[string]any{
		"project_id":   projectID,
		"account_id":   account.ID,
		"type":         "expense",
		"amount_cents": 150_00,
		"date":         "2025-06-10",
		"description":  "groceries",
		"category":     "food",
		"is_paid":      true,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	tx := decodeBody[transactionJSON](t, rr)
	require.True(t, tx.IsPaid)

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), userID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(-150_00), decodeBody[accountJSON](t, rr).BalanceCents)

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/transactions/%d/paid", tx.ID), userID, map[string]any{"paid": false})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), userID, nil)
	require.Equal(t, int64(0), decodeBody[accountJSON](t, rr).BalanceCents)

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/transactions/%d", tx.ID), userID, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/transactions/%d", tx.ID), userID, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusMapping(t *testing.T) {
	srv := newTestServer()
	const owner, stranger = 10, 99

	rr := doJSON(t, srv, http.MethodPost, "/projects", owner, map[string]any{"name": "household"})
	require.Equal(t, http.StatusCreated, rr.Code)
	projectID := decodeBody[map[string]int64](t, rr)["project_id"]

	// Missing caller header.
	rr = doJSON(t, srv, http.MethodPost, "/accounts", 0, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown body field.
	rr = doJSON(t, srv, http.MethodPost, "/accounts", owner, map[string]any{"bogus": 1})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// Field-level validation failure.
	rr = doJSON(t, srv, http.MethodPost, "/accounts", owner, map[string]any{
		"project_id": projectID,
		"name":       "x",
		"type":       "piggy_bank",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// Non-member mutation.
	rr = doJSON(t, srv, http.MethodPost, "/accounts", stranger, map[string]any{
		"project_id": projectID,
		"name":       "intruder",
		"type":       "cash",
	})
	require.Equal(t, http.StatusForbidden, rr.Code)

	// Invariant violation: transfer onto the same account.
	rr = doJSON(t, srv, http.MethodPost, "/transfers", owner, map[string]any{
		"project_id":      projectID,
		"from_account_id": 1,
		"to_account_id":   1,
		"amount_cents":    100,
		"date":            "2025-06-10",
		"description":     "loop",
	})
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDecimalAmountsOverHTTP(t *testing.T) {
	srv := newTestServer()
	const userID = 10

	rr := doJSON(t, srv, http.MethodPost, "/projects", userID, map[string]any{"name": "household"})
	require.Equal(t, http.StatusCreated, rr.Code)
	projectID := decodeBody[map[string]int64](t, rr)["project_id"]

	rr = doJSON(t, srv, http.MethodPost, "/accounts", userID, map[string]any{
		"project_id": projectID,
		"name":       "checking",
		"type":       "checking",
		"currency":   "EUR",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	account := decodeBody[accountJSON](t, rr)

	// "12,34" and "12.34" both mean 1234 cents.
	rr = doJSON(t, srv, http.MethodPost, "/transactions", userID, map[string]any{
		"project_id":  projectID,
		"account_id":  account.ID,
		"type":        "expense",
		"amount":      "12,34",
		"date":        "2025-06-10",
		"description": "coffee beans",
		"is_paid":     true,
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, int64(12_34), decodeBody[transactionJSON](t, rr).AmountCents)

	rr = doJSON(t, srv, http.MethodPost, "/transactions", userID, map[string]any{
		"project_id":  projectID,
		"account_id":  account.ID,
		"type":        "expense",
		"amount":      "not-a-number",
		"date":        "2025-06-10",
		"description": "garbage",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestCapacityReportOverHTTP(t *testing.T) {
	srv := newTestServer()
	const userID = 10

	rr := doJSON(t, srv, http.MethodPost, "/projects", userID, map[string]any{"name": "household"})
	projectID := decodeBody[map[string]int64](t, rr)["project_id"]

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/projects/%d/capacity", projectID), userID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decodeBody[capacityReportJSON](t, rr)
	require.False(t, report.HasLimit)
	require.Zero(t, report.PersonalMonthlyChargeCents)

	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/projects/%d/debt-limit", projectID), userID, map[string]any{"limit_cents": 500_000_00})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/projects/%d/capacity", projectID), userID, nil)
	report = decodeBody[capacityReportJSON](t, rr)
	require.True(t, report.HasLimit)
	require.Equal(t, int64(500_000_00), report.MonthlyLimitCents)
}

func TestCycleFlowOverHTTP(t *testing.T) {
	srv := newTestServer()
	const userID = 10

	rr := doJSON(t, srv, http.MethodPost, "/projects", userID, map[string]any{"name": "household"})
	projectID := decodeBody[map[string]int64](t, rr)["project_id"]

	rr = doJSON(t, srv, http.MethodPost, "/cycles", userID, map[string]any{
		"project_id": projectID,
		"start_date": "2025-06-01",
		"end_date":   "2025-06-30",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	cycle := decodeBody[cycleJSON](t, rr)
	require.Equal(t, "open", cycle.Status)

	// A second open cycle is rejected.
	rr = doJSON(t, srv, http.MethodPost, "/cycles", userID, map[string]any{
		"project_id": projectID,
		"start_date": "2025-07-01",
		"end_date":   "2025-07-31",
	})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, srv, http.MethodPost, fmt.Sprintf("/cycles/%d/close", cycle.ID), userID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	closed := decodeBody[cycleJSON](t, rr)
	require.Equal(t, "closed", closed.Status)
	require.NotNil(t, closed.Snapshot)

	rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/cycles/%d/report", cycle.ID), userID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}
