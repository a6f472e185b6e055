/*
handlers_test.go - Tests for API handlers

Tests for:
- Owner header enforcement
- Domain error to HTTP status mapping
- Transfer and materialization endpoints end to end
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneta/finance-engine/engine"
	"github.com/moneta/finance-engine/finance"
	"github.com/moneta/finance-engine/store/sqlite"
)

func newTestRouter(t *testing.T) (http.Handler, *engine.Engine) {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	eng := engine.New(store)
	eng.Now = func() finance.Date { return finance.NewDate(2025, time.December, 4) }
	return NewRouter(NewHandler(eng)), eng
}

func doJSON(t *testing.T, router http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// =============================================================================
// OWNER HEADER
// =============================================================================

func TestHandlers_MissingOwnerHeader_Rejected(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/accounts", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_OwnerScoping_HidesForeignRows(t *testing.T) {
	// A row created by one owner is indistinguishable from absence for
	// another.

	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", "user-1", CreateAccountRequest{
		Name: "Checking",
		Type: "bank",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decode[AccountDTO](t, rec)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts/"+account.ID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts/"+account.ID, "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestHandlers_PairedMutation_Conflict(t *testing.T) {
	// Mutating one transfer leg through the single-transaction endpoint
	// maps the pairing violation to 409.

	router, _ := newTestRouter(t)

	for _, name := range []string{"Checking", "Savings"} {
		rec := doJSON(t, router, http.MethodPost, "/api/accounts", "user-1", CreateAccountRequest{
			Name: name, Type: "bank",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	accounts := decode[[]AccountDTO](t, doJSON(t, router, http.MethodGet, "/api/accounts", "user-1", nil))
	require.Len(t, accounts, 2)

	rec := doJSON(t, router, http.MethodPost, "/api/transfers", "user-1", CreateTransferRequest{
		FromAccountID: accounts[0].ID,
		ToAccountID:   accounts[1].ID,
		Amount:        "300",
		Date:          "2025-12-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	transfer := decode[TransferDTO](t, rec)

	rec = doJSON(t, router, http.MethodDelete, "/api/transactions/"+transfer.OutgoingTransactionID, "user-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_InvalidBody_BadRequest(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", "user-1", CreateAccountRequest{
		Name: "Checking",
		Type: "hedge_fund",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// MATERIALIZATION ENDPOINT
// =============================================================================

func TestHandlers_Materialize_ReportsSummary(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/accounts", "user-1", CreateAccountRequest{
		Name: "Checking", Type: "bank",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decode[AccountDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/categories", "user-1", CreateCategoryRequest{
		Name: "Rent", Flow: "outcome",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	category := decode[CategoryDTO](t, rec)

	rec = doJSON(t, router, http.MethodPost, "/api/recurring", "user-1", CreateRuleRequest{
		AccountID:  account.ID,
		CategoryID: category.ID,
		Flow:       "outcome",
		Amount:     "1200",
		Schedule:   ScheduleDTO{Frequency: "monthly", Interval: 1},
		StartDate:  "2025-09-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/materialize", "user-1", MaterializeRequest{
		AsOf: "2025-12-04",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[MaterializeResultDTO](t, rec)

	assert.Equal(t, 4, result.TransactionsGenerated)
	assert.Equal(t, 1, result.RulesProcessed)

	rec = doJSON(t, router, http.MethodGet, "/api/accounts/"+account.ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "-4800", decode[AccountDTO](t, rec).Balance)
}
