package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dimas0824/PayTo-sub001/internal/cache"
	"github.com/Dimas0824/PayTo-sub001/internal/checkout"
	"github.com/Dimas0824/PayTo-sub001/internal/domain"
	"github.com/Dimas0824/PayTo-sub001/internal/metrics"
	"github.com/Dimas0824/PayTo-sub001/internal/service"
	"github.com/Dimas0824/PayTo-sub001/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	reg := metrics.NewRegistry()
	svc := service.New(repo, cache.NoopCatalogCache{}, checkout.New(11), reg, "test-store", time.Minute)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, reg.Handler())
}

func loginAsCashier(t *testing.T, api *API) string {
	t.Helper()

	payload, _ := json.Marshal(domain.LoginRequest{Username: "cashier", Password: "cashier123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func checkoutBody(txnUUID string, received int64) []byte {
	payload, _ := json.Marshal(domain.CheckoutPayload{
		ClientTxnUUID:     txnUUID,
		OccurredAt:        time.Now().UTC(),
		PaymentMethod:     domain.PaymentMethodCash,
		CashReceivedCents: received,
		Items: []domain.CheckoutItem{
			{ProductID: "PRD-BERAS-01", Qty: 2},
			{ProductID: "PRD-MINYAK-01", Qty: 1},
		},
	})
	return payload
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestCheckoutRequiresBearerToken(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(checkoutBody("txn-noauth", 160000)))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestHandleCheckoutEndToEnd(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(checkoutBody("txn-http-1", 160000)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if resp.InvoiceNo == "" || resp.SaleID == 0 {
		t.Fatalf("expected server-assigned invoice and id, got %+v", resp)
	}
	if resp.Totals.GrandTotalCents != 154734 || resp.Totals.ChangeCents != 5266 {
		t.Fatalf("unexpected totals: %+v", resp.Totals)
	}

	// Replaying the same identifier returns the original sale with 200.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(checkoutBody("txn-http-1", 160000)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", rec.Code)
	}
	var dup domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&dup); err != nil {
		t.Fatalf("decode duplicate response: %v", err)
	}
	if !dup.Duplicate || dup.SaleID != resp.SaleID {
		t.Fatalf("expected duplicate of sale %d, got %+v", resp.SaleID, dup)
	}
}

func TestHandleCheckoutRejectsInsufficientCash(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(checkoutBody("txn-short", 100000)))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for insufficient cash, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSyncBatch(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsCashier(t, api)

	var txn domain.CheckoutPayload
	if err := json.Unmarshal(checkoutBody("txn-sync-1", 160000), &txn); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}

	body, _ := json.Marshal(domain.SyncBatchRequest{
		DeviceID:  "dev-kasir-1",
		BatchUUID: "batch-http-1",
		Transactions: []domain.SyncTransaction{
			{ClientTxnUUID: "txn-sync-1", OccurredAt: txn.OccurredAt, Checkout: txn},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/batch", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.SyncBatchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode sync response: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Status != domain.SyncStatusProcessed {
		t.Fatalf("unexpected sync results: %+v", resp.Results)
	}

	// The synced sale is now visible by its client transaction identifier.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/checkout/txn/txn-sync-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on lookup, got %d", rec.Code)
	}
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	body, _ := json.Marshal(domain.LoginRequest{Username: "cashier", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		rec := httptest.NewRecorder()

		api.Handler().ServeHTTP(rec, req)

		if i < 5 && rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d expected 401 before limit, got %d", i+1, rec.Code)
		}
		if i == 5 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("attempt 6 expected 429, got %d", rec.Code)
		}
	}
}
