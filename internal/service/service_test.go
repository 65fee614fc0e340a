package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/locker"
	"github.com/altbank/corebank/internal/infra/memstore"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/infra/resilience"
	"github.com/altbank/corebank/internal/port"
	"github.com/altbank/corebank/internal/service"
)

// --- Mocks ---

type mockKYC struct {
	approved bool
	err      error
}

func (m *mockKYC) IsApproved(_ context.Context, _ string) (bool, error) {
	return m.approved, m.err
}

type mockRail struct {
	reference string
	status    string
	err       error
	calls     int
}

func (m *mockRail) Send(_ context.Context, _ *domain.Transfer) (string, string, error) {
	m.calls++
	if m.err != nil {
		return "", "", m.err
	}
	return m.reference, m.status, nil
}

// mockSender records sends and can fail the first n attempts.
type mockSender struct {
	mu        sync.Mutex
	failFirst int
	attempts  int
}

func (m *mockSender) Send(_ context.Context, _ *domain.Notification) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.attempts <= m.failFirst {
		return "", errors.New("provider unavailable")
	}
	return "REF-001", nil
}

func (m *mockSender) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// --- Harness ---

type testEnv struct {
	store     *memstore.Store
	ledger    *service.Ledger
	engine    *service.TransactionEngine
	transfers *service.TransferService
	accounts  *service.AccountService
	notifier  *service.NotificationService
	audit     *service.AuditService
	sender    *mockSender
	rail      *mockRail
	kyc       *mockKYC
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memstore.New()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	locks := locker.New()
	audit := service.NewAuditService(store, metrics, logger)
	ledger := service.NewLedger(store, locks, audit, metrics, logger)

	sender := &mockSender{}
	senders := map[domain.NotificationChannel]port.ChannelSender{
		domain.ChannelEmail: sender,
		domain.ChannelSMS:   sender,
		domain.ChannelInApp: sender,
	}
	retry := resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	notifier := service.NewNotificationService(store, senders, retry, audit, metrics, logger)

	engine := service.NewTransactionEngine(store, ledger, notifier, audit, metrics, logger, decimal.NewFromInt(10000))

	rail := &mockRail{reference: "EXT-REF-1", status: "SUCCESS"}
	transfers := service.NewTransferService(store, ledger, engine, rail, notifier, audit, metrics, logger, decimal.NewFromInt(100000))

	kyc := &mockKYC{approved: true}
	accounts := service.NewAccountService(store, kyc, ledger, notifier, audit, metrics, logger)

	return &testEnv{
		store:     store,
		ledger:    ledger,
		engine:    engine,
		transfers: transfers,
		accounts:  accounts,
		notifier:  notifier,
		audit:     audit,
		sender:    sender,
		rail:      rail,
		kyc:       kyc,
	}
}

// activeAccount seeds an active account with the given balance.
func (env *testEnv) activeAccount(t *testing.T, customerID, balance string) *domain.Account {
	t.Helper()

	account, err := env.accounts.Open(context.Background(), &domain.OpenAccountRequest{
		CustomerID: customerID,
		Name:       "Test Account",
		Type:       domain.AccountSavings,
		Currency:   "INR",
	}, "tester")
	if err != nil {
		t.Fatalf("open account: %v", err)
	}
	account, err = env.accounts.Activate(context.Background(), account.ID, "tester")
	if err != nil {
		t.Fatalf("activate account: %v", err)
	}

	if balance != "" && balance != "0" {
		if _, err := env.ledger.Credit(context.Background(), account.ID, domain.MustMoney(balance, "INR"), "tester"); err != nil {
			t.Fatalf("seed balance: %v", err)
		}
		account, err = env.accounts.Get(context.Background(), account.ID)
		if err != nil {
			t.Fatalf("reload account: %v", err)
		}
	}
	return account
}

func mustAmount(t *testing.T, got domain.Money, want string) {
	t.Helper()
	if got.Amount.Cmp(decimal.RequireFromString(want)) != 0 {
		t.Fatalf("amount = %s, want %s", got.Amount, want)
	}
}
