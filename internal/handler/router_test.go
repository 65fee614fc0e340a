package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/handler"
	"github.com/altbank/corebank/internal/infra/locker"
	"github.com/altbank/corebank/internal/infra/memstore"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/infra/resilience"
	"github.com/altbank/corebank/internal/port"
	"github.com/altbank/corebank/internal/service"
)

type stubKYC struct{}

func (stubKYC) IsApproved(ctx context.Context, customerID string) (bool, error) { return true, nil }

type stubRail struct{}

func (stubRail) Send(ctx context.Context, transfer *domain.Transfer) (string, string, error) {
	return "EXT-REF-1", "SUCCESS", nil
}

type stubSender struct{}

func (stubSender) Send(ctx context.Context, n *domain.Notification) (string, error) {
	return "REF-001", nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store := memstore.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	audit := service.NewAuditService(store, metrics, logger)
	ledger := service.NewLedger(store, locker.New(), audit, metrics, logger)
	retry := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	senders := map[domain.NotificationChannel]port.ChannelSender{
		domain.ChannelEmail: stubSender{},
		domain.ChannelSMS:   stubSender{},
		domain.ChannelInApp: stubSender{},
	}
	notifier := service.NewNotificationService(store, senders, retry, audit, metrics, logger)
	engine := service.NewTransactionEngine(store, ledger, notifier, audit, metrics, logger, decimal.NewFromInt(10000))
	transfers := service.NewTransferService(store, ledger, engine, stubRail{}, notifier, audit, metrics, logger, decimal.NewFromInt(100000))
	accounts := service.NewAccountService(store, stubKYC{}, ledger, notifier, audit, metrics, logger)

	hash, err := service.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	auth := service.NewAuthService(map[string]string{"teller1": hash}, "test-signing-key", 15*time.Minute, audit, logger)

	return handler.NewRouter(handler.Services{
		Accounts:     accounts,
		Ledger:       ledger,
		Transactions: engine,
		Transfers:    transfers,
		Notifier:     notifier,
		Audit:        audit,
		Auth:         auth,
	}, metrics, logger)
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

func login(t *testing.T, router http.Handler) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "teller1",
		"password": "s3cret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}
	return resp.AccessToken
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/readyz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/accounts/acc-1", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/acc-1", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: expected 401, got %d", rec.Code)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"username": "teller1",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAccountLifecycleOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", token, map[string]string{
		"customer_id":  "cust-1",
		"name":         "Main Savings",
		"account_type": "savings",
		"currency":     "INR",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if account.Status != domain.AccountDraft {
		t.Errorf("expected draft account, got %s", account.Status)
	}
	if len(account.AccountNumber) != 12 {
		t.Errorf("expected 12-digit account number, got %q", account.AccountNumber)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/accounts/"+account.ID+"/activate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Deposit through the transaction engine.
	rec = doJSON(t, router, http.MethodPost, "/v1/transactions", token, map[string]string{
		"account_id": account.ID,
		"type":       "deposit",
		"amount":     "1000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var txn domain.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txn); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	if txn.Status != domain.TxnPending {
		t.Errorf("expected pending transaction, got %s", txn.Status)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/transactions/"+txn.ID+"/complete", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+account.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if !account.Balance.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected balance 1000, got %s", account.Balance.Amount)
	}

	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+account.ID+"/statement", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("statement: expected 200, got %d", rec.Code)
	}
}

func TestInternalTransferOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	from := openActiveFundedAccount(t, router, token, "cust-1", "1000")
	to := openActiveFundedAccount(t, router, token, "cust-2", "0")

	rec := doJSON(t, router, http.MethodPost, "/v1/transfers", token, map[string]string{
		"type":            "internal",
		"from_account_id": from,
		"to_account_id":   to,
		"amount":          "250",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var transfer domain.Transfer
	if err := json.Unmarshal(rec.Body.Bytes(), &transfer); err != nil {
		t.Fatalf("decode transfer: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/transfers/"+transfer.ID+"/submit", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &transfer); err != nil {
		t.Fatalf("decode transfer: %v", err)
	}
	if transfer.Status != domain.TrfCompleted {
		t.Errorf("expected completed transfer, got %s", transfer.Status)
	}

	var dest domain.Account
	rec = doJSON(t, router, http.MethodGet, "/v1/accounts/"+to, token, nil)
	if err := json.Unmarshal(rec.Body.Bytes(), &dest); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if !dest.Balance.Amount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected destination balance 250, got %s", dest.Balance.Amount)
	}
}

func TestDomainErrorsMapToStatusCodes(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	rec := doJSON(t, router, http.MethodGet, "/v1/accounts/no-such-account", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown account: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/accounts", token, map[string]string{
		"customer_id": "cust-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid open request: expected 400, got %d", rec.Code)
	}

	acc := openActiveFundedAccount(t, router, token, "cust-1", "100")
	rec = doJSON(t, router, http.MethodPost, "/v1/transactions", token, map[string]string{
		"account_id": acc,
		"type":       "withdrawal",
		"amount":     "500",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("post: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var txn domain.Transaction
	if err := json.Unmarshal(rec.Body.Bytes(), &txn); err != nil {
		t.Fatalf("decode transaction: %v", err)
	}
	rec = doJSON(t, router, http.MethodPost, "/v1/transactions/"+txn.ID+"/complete", token, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("insufficient funds: expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHoldsOverHTTP(t *testing.T) {
	router := newTestRouter(t)
	token := login(t, router)

	acc := openActiveFundedAccount(t, router, token, "cust-1", "1000")

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts/"+acc+"/holds", token, map[string]string{
		"amount": "400",
		"reason": "card authorization",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("hold: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if !account.AvailableBalance.Amount.Equal(decimal.NewFromInt(600)) {
		t.Errorf("expected available 600, got %s", account.AvailableBalance.Amount)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/accounts/"+acc+"/holds/release", token, map[string]string{
		"amount": "400",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("release: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

// openActiveFundedAccount drives the API to an active account with the
// given opening balance and returns its ID.
func openActiveFundedAccount(t *testing.T, router http.Handler, token, customerID, balance string) string {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/accounts", token, map[string]string{
		"customer_id":  customerID,
		"name":         fmt.Sprintf("%s account", customerID),
		"account_type": "savings",
		"currency":     "INR",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var account domain.Account
	if err := json.Unmarshal(rec.Body.Bytes(), &account); err != nil {
		t.Fatalf("decode account: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, "/v1/accounts/"+account.ID+"/activate", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if balance != "0" {
		rec = doJSON(t, router, http.MethodPost, "/v1/transactions", token, map[string]string{
			"account_id": account.ID,
			"type":       "deposit",
			"amount":     balance,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("deposit: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var txn domain.Transaction
		if err := json.Unmarshal(rec.Body.Bytes(), &txn); err != nil {
			t.Fatalf("decode transaction: %v", err)
		}
		rec = doJSON(t, router, http.MethodPost, "/v1/transactions/"+txn.ID+"/complete", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("complete deposit: expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}
	return account.ID
}
