package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/altbank/corebank/internal/domain"
)

// waitForStatus polls until the notification leaves queued status or
// the deadline passes. Dispatch is asynchronous.
func waitForStatus(t *testing.T, env *testEnv, id string) *domain.Notification {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := env.notifier.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get notification: %v", err)
		}
		if n.Status == domain.NotifSent || n.Status == domain.NotifFailed {
			return n
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("notification never settled")
	return nil
}

func TestNotificationService_RequestDispatchesAsync(t *testing.T) {
	env := newTestEnv(t)

	n, err := env.notifier.Request(context.Background(), "cust-1", domain.ChannelEmail,
		"Subject", "Body", domain.PriorityNormal)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if n.Status != domain.NotifQueued {
		t.Fatalf("status = %s, want queued", n.Status)
	}

	settled := waitForStatus(t, env, n.ID)
	if settled.Status != domain.NotifSent {
		t.Fatalf("status = %s, want sent", settled.Status)
	}
	if settled.SentAt == nil || settled.GatewayReference == "" {
		t.Fatal("expected sent bookkeeping")
	}
	if settled.RetryCount != 0 {
		t.Fatalf("retry_count = %d, want 0", settled.RetryCount)
	}
}

func TestNotificationService_RetriesThenSucceeds(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failFirst = 2

	n, err := env.notifier.Request(context.Background(), "cust-1", domain.ChannelSMS,
		"Subject", "Body", domain.PriorityHigh)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	settled := waitForStatus(t, env, n.ID)
	if settled.Status != domain.NotifSent {
		t.Fatalf("status = %s, want sent", settled.Status)
	}
	if settled.RetryCount != 2 {
		t.Fatalf("retry_count = %d, want 2", settled.RetryCount)
	}
}

func TestNotificationService_FailsPermanentlyAfterCap(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failFirst = 100

	n, err := env.notifier.Request(context.Background(), "cust-1", domain.ChannelEmail,
		"Subject", "Body", domain.PriorityNormal)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	settled := waitForStatus(t, env, n.ID)
	if settled.Status != domain.NotifFailed {
		t.Fatalf("status = %s, want failed", settled.Status)
	}
	if settled.ErrorMessage == "" {
		t.Fatal("expected an error message")
	}
	// 1 initial attempt + 3 retries.
	if got := env.sender.Attempts(); got != 4 {
		t.Fatalf("attempts = %d, want 4", got)
	}
	if settled.RetryCount != 3 {
		t.Fatalf("retry_count = %d, want 3", settled.RetryCount)
	}
}

func TestNotificationService_RequestValidation(t *testing.T) {
	env := newTestEnv(t)

	var validation *domain.ErrValidation
	if _, err := env.notifier.Request(context.Background(), "cust-1", "carrier_pigeon", "S", "B", domain.PriorityLow); !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for unknown channel, got %v", err)
	}
	if _, err := env.notifier.Request(context.Background(), "", domain.ChannelEmail, "S", "B", domain.PriorityLow); !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for missing customer, got %v", err)
	}
}

func TestNotificationService_ManualRetryOnlyFromFailed(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failFirst = 100

	n, err := env.notifier.Request(context.Background(), "cust-1", domain.ChannelEmail,
		"Subject", "Body", domain.PriorityNormal)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	failed := waitForStatus(t, env, n.ID)
	if failed.Status != domain.NotifFailed {
		t.Fatalf("status = %s, want failed", failed.Status)
	}

	// Heal the provider and retry manually.
	env.sender.mu.Lock()
	env.sender.failFirst = 0
	env.sender.mu.Unlock()

	if _, err := env.notifier.Retry(context.Background(), n.ID, "op-1"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	settled := waitForStatus(t, env, n.ID)
	if settled.Status != domain.NotifSent {
		t.Fatalf("status = %s, want sent after manual retry", settled.Status)
	}

	// Sent notifications cannot be retried.
	var invalidState *domain.ErrInvalidState
	if _, err := env.notifier.Retry(context.Background(), n.ID, "op-1"); !errors.As(err, &invalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

// A delivery failure must never fail the financial operation that
// raised the notification.
func TestNotificationService_FailureDoesNotPropagate(t *testing.T) {
	env := newTestEnv(t)
	env.sender.failFirst = 100

	account := env.activeAccount(t, "cust-1", "50000")

	// Amount above the alert threshold raises a notification whose
	// delivery will fail; the transaction must still complete.
	txn, err := env.engine.Post(context.Background(), &domain.PostTransactionRequest{
		AccountID: account.ID, Type: domain.TxDeposit, Amount: "15000",
	}, "tester")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	completed, err := env.engine.Complete(context.Background(), txn.ID, "tester")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.TxnCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}
}

func TestNotificationService_LargeTransactionTriggersAlert(t *testing.T) {
	env := newTestEnv(t)
	account := env.activeAccount(t, "cust-1", "50000")

	txn, err := env.engine.Post(context.Background(), &domain.PostTransactionRequest{
		AccountID: account.ID, Type: domain.TxWithdrawal, Amount: "10000",
	}, "tester")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := env.engine.Complete(context.Background(), txn.ID, "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		list, err := env.notifier.List(context.Background(), "cust-1", 1, 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("expected an alert notification at the threshold")
}

func TestNotificationService_BelowThresholdNoAlert(t *testing.T) {
	env := newTestEnv(t)
	account := env.activeAccount(t, "cust-1", "50000")

	txn, err := env.engine.Post(context.Background(), &domain.PostTransactionRequest{
		AccountID: account.ID, Type: domain.TxWithdrawal, Amount: "9999.99",
	}, "tester")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := env.engine.Complete(context.Background(), txn.ID, "tester"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	list, err := env.notifier.List(context.Background(), "cust-1", 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no alert below the threshold, got %d", len(list))
	}
}
