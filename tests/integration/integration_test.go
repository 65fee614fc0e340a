package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/handler"
	"github.com/altbank/corebank/internal/infra/cache"
	"github.com/altbank/corebank/internal/infra/gateway"
	"github.com/altbank/corebank/internal/infra/locker"
	"github.com/altbank/corebank/internal/infra/memstore"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/infra/resilience"
	"github.com/altbank/corebank/internal/port"
	"github.com/altbank/corebank/internal/service"
)

// TestIntegration_FullFlow spins up mock external services and drives
// the API from login through an external transfer over the rail.
func TestIntegration_FullFlow(t *testing.T) {
	// --- Mock KYC service ---
	kycServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		customerID := parts[len(parts)-2] // /v1/customers/{id}/kyc
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"customer_id": customerID,
			"approved":    true,
		})
	}))
	defer kycServer.Close()

	// --- Mock payment rail ---
	var railCalls atomic.Int32
	railServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		railCalls.Add(1)
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"reference": "RAIL-REF-42",
			"status":    "SUCCESS",
		})
	}))
	defer railServer.Close()

	router, token := newStack(t, kycServer.URL, railServer.URL)

	// Open and activate a funded account. Activation consults the KYC mock.
	accountID := openFundedAccount(t, router, token, "cust-integration-1", "10000")

	// Send an IMPS transfer over the rail. Fee is 5, so 1005 leaves the
	// account in total.
	rec := doJSON(t, router, http.MethodPost, "/v1/transfers", token, map[string]any{
		"type":            "imps",
		"from_account_id": accountID,
		"amount":          "1000",
		"beneficiary": map[string]string{
			"name":           "Ravi Kumar",
			"account_number": "999900001111",
			"bank":           "External Bank",
			"ifsc":           "EXTB0000001",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transfer: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var transfer domain.Transfer
	decodeBody(t, rec, &transfer)

	rec = doJSON(t, router, http.MethodPost, "/v1/transfers/"+transfer.ID+"/submit", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit transfer: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &transfer)

	if transfer.Status != domain.TrfCompleted {
		t.Errorf("expected completed transfer, got %s", transfer.Status)
	}
	if transfer.GatewayReference != "RAIL-REF-42" {
		t.Errorf("expected rail reference RAIL-REF-42, got %q", transfer.GatewayReference)
	}
	if railCalls.Load() != 1 {
		t.Errorf("expected 1 rail call, got %d", railCalls.Load())
	}

	var account domain.Account
	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+accountID, token, nil)
	decodeBody(t, rec, &account)
	if !account.Balance.Amount.Equal(decimal.RequireFromString("8995")) {
		t.Errorf("expected balance 8995 after transfer plus fee, got %s", account.Balance.Amount)
	}

	// The audit trail for the transfer is queryable over the API.
	rec = doJSON(t, router, http.MethodGet, "/v1/audit/transfer/"+transfer.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit query: expected 200, got %d", rec.Code)
	}
	var auditResp struct {
		Entries []domain.AuditLogEntry `json:"entries"`
	}
	decodeBody(t, rec, &auditResp)
	if len(auditResp.Entries) == 0 {
		t.Error("expected audit entries for the transfer")
	}
}

// TestIntegration_RailFailureCompensates verifies a rejecting rail
// leaves the source balance intact and the transfer failed.
func TestIntegration_RailFailureCompensates(t *testing.T) {
	railServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer railServer.Close()

	// Empty KYC URL means development mode: everyone approved.
	router, token := newStack(t, "", railServer.URL)
	accountID := openFundedAccount(t, router, token, "cust-integration-2", "5000")

	rec := doJSON(t, router, http.MethodPost, "/v1/transfers", token, map[string]any{
		"type":            "external",
		"from_account_id": accountID,
		"amount":          "2000",
		"beneficiary": map[string]string{
			"name":           "Meera Shah",
			"account_number": "888800002222",
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create transfer: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var transfer domain.Transfer
	decodeBody(t, rec, &transfer)

	rec = doJSON(t, router, http.MethodPost, "/v1/transfers/"+transfer.ID+"/submit", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("submit against dead rail: expected 422, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/transfers/"+transfer.ID, token, nil)
	decodeBody(t, rec, &transfer)
	if transfer.Status != domain.TrfFailed {
		t.Errorf("expected failed transfer, got %s", transfer.Status)
	}

	var account domain.Account
	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+accountID, token, nil)
	decodeBody(t, rec, &account)
	if !account.Balance.Amount.Equal(decimal.RequireFromString("5000")) {
		t.Errorf("expected balance restored to 5000, got %s", account.Balance.Amount)
	}
}

// ============================================================
// Harness
// ============================================================

func newStack(t *testing.T, kycURL, railURL string) (http.Handler, string) {
	t.Helper()

	store := memstore.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	httpClient := &http.Client{Timeout: 5 * time.Second}
	resilienceCfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 4}

	kycCache := cache.New[bool](time.Minute)
	t.Cleanup(kycCache.Close)
	kycClient := gateway.NewKYCClient(httpClient, kycURL, kycCache, logger)
	railClient := gateway.NewRailClient(httpClient, railURL, resilience.NewCircuitBreaker("payment-rail-test"), resilienceCfg, logger)

	sender := gateway.NewSimulatedSender(logger)
	senders := map[domain.NotificationChannel]port.ChannelSender{
		domain.ChannelEmail: sender,
		domain.ChannelSMS:   sender,
		domain.ChannelPush:  sender,
		domain.ChannelInApp: sender,
	}

	audit := service.NewAuditService(store, metrics, logger)
	ledger := service.NewLedger(store, locker.New(), audit, metrics, logger)
	notifier := service.NewNotificationService(store, senders, resilienceCfg, audit, metrics, logger)
	engine := service.NewTransactionEngine(store, ledger, notifier, audit, metrics, logger, decimal.NewFromInt(10000))
	transfers := service.NewTransferService(store, ledger, engine, railClient, notifier, audit, metrics, logger, decimal.NewFromInt(100000))
	accounts := service.NewAccountService(store, kycClient, ledger, notifier, audit, metrics, logger)

	hash, err := service.HashPassword("integration")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	auth := service.NewAuthService(map[string]string{"ops": hash}, "integration-secret", 15*time.Minute, audit, logger)

	router := handler.NewRouter(handler.Services{
		Accounts:     accounts,
		Ledger:       ledger,
		Transactions: engine,
		Transfers:    transfers,
		Notifier:     notifier,
		Audit:        audit,
		Auth:         auth,
	}, metrics, logger)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "ops",
		"password": "integration",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	return router, resp.AccessToken
}

func openFundedAccount(t *testing.T, router http.Handler, token, customerID, balance string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", token, map[string]string{
		"customer_id":  customerID,
		"name":         "Integration Account",
		"account_type": "current",
		"currency":     "INR",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open account: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	decodeBody(t, rec, &account)

	rec = doJSON(t, router, http.MethodPost, "/v1/accounts/"+account.ID+"/activate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate account: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/transactions", token, map[string]string{
		"account_id": account.ID,
		"type":       "deposit",
		"amount":     balance,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var txn domain.Transaction
	decodeBody(t, rec, &txn)

	rec = doJSON(t, router, http.MethodPost, "/v1/transactions/"+txn.ID+"/complete", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete deposit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return account.ID
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}
