package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpcore/books/internal/coa"
	"github.com/erpcore/books/internal/posting"
	"github.com/erpcore/books/internal/report"
	"github.com/erpcore/books/internal/storage/memory"
	"github.com/erpcore/books/internal/voucher"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	accounts := coa.New(store, store)
	vouchers := voucher.New(store, store)
	logger := slog.New(slog.DiscardHandler)
	engine := posting.NewEngine(store, store, vouchers, logger)
	reports := report.New(store)
	return New(accounts, vouchers, engine, reports, store, "PKR", logger)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

func createLeaf(t *testing.T, s *Server, code, name, typ, category string) accountResponse {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/v1/accounts", map[string]any{
		"code": code, "name": name, "type": typ, "category": category,
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	return decode[accountResponse](t, rec)
}

func entryBody(accountID, side string, amountMinor int64) map[string]any {
	return map[string]any{"account_id": accountID, "side": side, "amount_minor": amountMinor}
}

func voucherBody(narration string, entries ...map[string]any) map[string]any {
	return map[string]any{
		"voucher_type": "JV",
		"voucher_date": "2026-03-01T00:00:00Z",
		"narration":    narration,
		"entries":      entries,
	}
}

// Scenario: a balanced JV debiting Cash and crediting Sales posts cleanly and
// both balances rise by the same amount.
func TestPostBalancedJournalVoucher(t *testing.T) {
	s := newTestServer(t)

	cash := createLeaf(t, s, "1101", "Cash", "asset", "cash")
	sales := createLeaf(t, s, "4101", "Sales", "revenue", "sales")

	rec := doJSON(t, s, http.MethodPost, "/v1/vouchers", voucherBody(
		"cash sale of store goods",
		entryBody(cash.ID.String(), "debit", 100000),
		entryBody(sales.ID.String(), "credit", 100000),
	))
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	v := decode[voucherResponse](t, rec)
	assert.Equal(t, "JV-000001", v.Number)
	assert.Equal(t, "draft", v.Status)

	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	posted := decode[postVoucherResponse](t, rec)
	assert.Equal(t, "posted", posted.Voucher.Status)
	require.Len(t, posted.LedgerEntryIDs, 2)

	for _, acc := range []accountResponse{cash, sales} {
		rec = doJSON(t, s, http.MethodGet, "/v1/accounts/"+acc.ID.String()+"/balance", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		bal := decode[balanceResponse](t, rec)
		assert.Equal(t, int64(100000), bal.BalanceMinor, "account %s", acc.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/v1/trial-balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tb := decode[report.TrialBalance](t, rec)
	assert.True(t, tb.Balanced)
	assert.Equal(t, int64(100000), tb.TotalDebitMinor)
	assert.Equal(t, int64(100000), tb.TotalCreditMinor)

	// Posting again is idempotent.
	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[postVoucherResponse](t, rec)
	assert.ElementsMatch(t, posted.LedgerEntryIDs, again.LedgerEntryIDs)
}

// Scenario: an unbalanced voucher (debit 500, credit 400) is rejected with a
// field-addressable violation and stays a correctable draft.
func TestUnbalancedVoucherRejected(t *testing.T) {
	s := newTestServer(t)

	cash := createLeaf(t, s, "1101", "Cash", "asset", "cash")
	rent := createLeaf(t, s, "5301", "Rent", "expense", "rent")

	rec := doJSON(t, s, http.MethodPost, "/v1/vouchers", voucherBody(
		"rent paid from the till",
		entryBody(rent.ID.String(), "debit", 500),
		entryBody(cash.ID.String(), "credit", 400),
	))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[voucherResponse](t, rec)

	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/post", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "body: %s", rec.Body.String())
	resp := decode[validationResponse](t, rec)
	found := false
	for _, viol := range resp.Violations {
		if viol.Code == "unbalanced_entry" {
			found = true
		}
	}
	assert.True(t, found, "violations: %+v", resp.Violations)

	// No ledger effects; the draft remains editable.
	rec = doJSON(t, s, http.MethodGet, "/v1/vouchers/"+v.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[voucherResponse](t, rec)
	assert.Equal(t, "draft", got.Status)

	rec = doJSON(t, s, http.MethodGet, "/v1/accounts/"+cash.ID.String()+"/balance", nil)
	bal := decode[balanceResponse](t, rec)
	assert.Equal(t, int64(0), bal.BalanceMinor)

	// Fix the credit entry and post successfully.
	var creditEntryID string
	for _, e := range got.Entries {
		if e.Side == "credit" {
			creditEntryID = e.ID.String()
		}
	}
	rec = doJSON(t, s, http.MethodPatch, "/v1/vouchers/"+v.ID.String()+"/entries/"+creditEntryID,
		entryBody(cash.ID.String(), "credit", 500))
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
}

// Scenario: posting to a deactivated account is rejected.
func TestPostToDeactivatedAccountRejected(t *testing.T) {
	s := newTestServer(t)

	cash := createLeaf(t, s, "1101", "Cash", "asset", "cash")
	sales := createLeaf(t, s, "4101", "Sales", "revenue", "sales")

	rec := doJSON(t, s, http.MethodPost, "/v1/vouchers", voucherBody(
		"sale against a retired account",
		entryBody(cash.ID.String(), "debit", 1000),
		entryBody(sales.ID.String(), "credit", 1000),
	))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[voucherResponse](t, rec)

	rec = doJSON(t, s, http.MethodDelete, "/v1/accounts/"+sales.ID.String(), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/post", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "body: %s", rec.Body.String())
	resp := decode[validationResponse](t, rec)
	found := false
	for _, viol := range resp.Violations {
		if viol.Code == "account_inactive" {
			found = true
		}
	}
	assert.True(t, found, "violations: %+v", resp.Violations)
}

func TestAccountValidationErrors(t *testing.T) {
	s := newTestServer(t)

	// DTO-level failure: missing required fields.
	rec := doJSON(t, s, http.MethodPost, "/v1/accounts", map[string]any{"code": "1101"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Domain-level failure: category invalid for type.
	rec = doJSON(t, s, http.MethodPost, "/v1/accounts", map[string]any{
		"code": "1101", "name": "Cash", "type": "asset", "category": "sales",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[validationResponse](t, rec)
	require.NotEmpty(t, resp.Violations)
	assert.Equal(t, "category", resp.Violations[0].Field)

	// Duplicate code conflicts.
	createLeaf(t, s, "1101", "Cash", "asset", "cash")
	rec = doJSON(t, s, http.MethodPost, "/v1/accounts", map[string]any{
		"code": "1101", "name": "Cash Again", "type": "asset", "category": "cash",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestVoucherLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	cash := createLeaf(t, s, "1101", "Cash", "asset", "cash")
	sales := createLeaf(t, s, "4101", "Sales", "revenue", "sales")

	rec := doJSON(t, s, http.MethodPost, "/v1/vouchers", voucherBody(
		"sale to be reversed later",
		entryBody(cash.ID.String(), "debit", 2500),
		entryBody(sales.ID.String(), "credit", 2500),
	))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[voucherResponse](t, rec)

	// Validate endpoint reports readiness without posting.
	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/validate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Posted vouchers cannot be cancelled.
	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/cancel", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	// Reverse creates a mirrored draft; posting it zeroes the balances.
	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+v.ID.String()+"/reverse",
		map[string]any{"voucher_date": "2026-04-01T00:00:00Z"})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	reversal := decode[voucherResponse](t, rec)
	assert.Equal(t, v.Number, reversal.Reference)

	rec = doJSON(t, s, http.MethodPost, "/v1/vouchers/"+reversal.ID.String()+"/post", nil)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/v1/accounts/"+cash.ID.String()+"/balance", nil)
	bal := decode[balanceResponse](t, rec)
	assert.Equal(t, int64(0), bal.BalanceMinor)

	// Reconcile passes: cached balances match ledger replay.
	rec = doJSON(t, s, http.MethodPost, "/v1/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateAccountOverHTTP(t *testing.T) {
	s := newTestServer(t)

	cash := createLeaf(t, s, "1101", "Cash", "asset", "cash")

	rec := doJSON(t, s, http.MethodPatch, "/v1/accounts/"+cash.ID.String(), map[string]any{
		"name": "Cash in Hand",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	updated := decode[accountResponse](t, rec)
	assert.Equal(t, "Cash in Hand", updated.Name)

	// Category must stay compatible with the account type.
	rec = doJSON(t, s, http.MethodPatch, "/v1/accounts/"+cash.ID.String(), map[string]any{
		"category": "sales",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSeedAndListAccounts(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/v1/accounts/seed", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	seeded := decode[[]accountResponse](t, rec)
	require.NotEmpty(t, seeded)

	rec = doJSON(t, s, http.MethodGet, "/v1/accounts?type=asset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assets := decode[[]accountResponse](t, rec)
	require.NotEmpty(t, assets)
	for _, a := range assets {
		assert.Equal(t, "asset", a.Type)
	}

	rec = doJSON(t, s, http.MethodGet, fmt.Sprintf("/v1/accounts?search=%s", "Cash"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byName := decode[[]accountResponse](t, rec)
	require.NotEmpty(t, byName)

	// Seeding twice conflicts.
	rec = doJSON(t, s, http.MethodPost, "/v1/accounts/seed", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, s, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
