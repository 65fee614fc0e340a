package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/port"
)

var txnTracer = otel.Tracer("service/transactions")

// TransactionEngine owns the transaction lifecycle. A transaction is
// posted as pending and applied to the ledger only at Complete, under
// the owning account's exclusivity scope. Completed transactions are
// immutable; Reverse compensates by posting an inverse-type record.
type TransactionEngine struct {
	store    port.Store
	ledger   *Ledger
	notifier *NotificationService
	audit    *AuditService
	metrics  *observability.Metrics
	logger   *zap.Logger

	// alertThreshold triggers a customer notification when a completed
	// transaction's amount reaches it.
	alertThreshold decimal.Decimal
}

// NewTransactionEngine creates the engine. alertThreshold is the
// currency-agnostic amount at which completions notify the customer.
func NewTransactionEngine(store port.Store, ledger *Ledger, notifier *NotificationService, audit *AuditService, metrics *observability.Metrics, logger *zap.Logger, alertThreshold decimal.Decimal) *TransactionEngine {
	return &TransactionEngine{
		store:          store,
		ledger:         ledger,
		notifier:       notifier,
		audit:          audit,
		metrics:        metrics,
		logger:         logger,
		alertThreshold: alertThreshold,
	}
}

// Post validates the request and records a pending transaction.
// No balance changes until Complete.
func (e *TransactionEngine) Post(ctx context.Context, req *domain.PostTransactionRequest, actor string) (*domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionEngine.Post")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", req.AccountID),
		attribute.String("transaction.type", string(req.Type)),
	)

	if !req.Type.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown transaction type: " + string(req.Type)}
	}

	account, err := e.store.GetAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountActive {
		return nil, &domain.ErrInvalidState{
			Entity: "account", ID: account.ID,
			Status: string(account.Status), Action: "post transaction against",
		}
	}

	amount, err := domain.NewMoney(req.Amount, account.Currency)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	number, err := e.store.NextTransactionNumber(ctx)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:                uuid.NewString(),
		TransactionNumber: number,
		AccountID:         account.ID,
		Type:              req.Type,
		Amount:            amount,
		BalanceBefore:     account.Balance,
		BalanceAfter:      domain.Zero(account.Currency),
		Status:            domain.TxnPending,
		Description:       req.Description,
		Reference:         req.Reference,
		LoanID:            req.LoanID,
		TransferID:        req.TransferID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	e.audit.Record(ctx, domain.AuditTransaction, "transaction", txn.ID, account.ID,
		fmt.Sprintf("posted %s %s %s", txn.TransactionNumber, txn.Type, txn.Amount),
		actor, domain.SeverityInfo)
	return txn, nil
}

// Complete applies a pending transaction to the ledger and marks it
// completed. Calling Complete on an already completed transaction is a
// no-op returning the record unchanged. The balance snapshot is
// refreshed under the account scope so balance_after always equals
// balance_before plus or minus the amount, even under concurrent load.
func (e *TransactionEngine) Complete(ctx context.Context, txnID, actor string) (*domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionEngine.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txnID))

	start := time.Now()
	defer func() { e.metrics.RecordOperationDuration("transaction_complete", time.Since(start)) }()

	txn, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}

	var completed *domain.Transaction
	applied := false
	err = e.ledger.WithAccount(txn.AccountID, func() error {
		// Re-read inside the scope: a concurrent Complete may have
		// settled the transaction while we waited.
		txn, err = e.store.GetTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if txn.Status == domain.TxnCompleted {
			completed = txn
			return nil
		}
		if txn.Status != domain.TxnPending {
			return &domain.ErrInvalidState{
				Entity: "transaction", ID: txn.ID,
				Status: string(txn.Status), Action: "complete",
			}
		}

		account, err := e.store.GetAccount(ctx, txn.AccountID)
		if err != nil {
			return err
		}

		direction, err := txn.Type.Direction()
		if err != nil {
			return err
		}

		txn.BalanceBefore = account.Balance
		switch direction {
		case domain.DirCredit:
			err = e.ledger.CreditLocked(ctx, account, txn.Amount, actor)
		case domain.DirDebit:
			err = e.ledger.DebitLocked(ctx, account, txn.Amount, actor)
		}
		if err != nil {
			var insufficient *domain.ErrInsufficientFunds
			if errors.As(err, &insufficient) {
				e.failTransaction(ctx, txn, err.Error(), actor)
			}
			return err
		}

		now := time.Now().UTC()
		txn.BalanceAfter = account.Balance
		txn.Status = domain.TxnCompleted
		txn.CompletedAt = &now
		if err := e.store.UpdateTransaction(ctx, txn); err != nil {
			return err
		}
		completed = txn
		applied = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return completed, nil
	}

	e.metrics.IncrTransaction(string(completed.Type), string(domain.TxnCompleted))
	e.audit.Record(ctx, domain.AuditTransaction, "transaction", completed.ID, completed.AccountID,
		fmt.Sprintf("completed %s %s %s, balance %s -> %s",
			completed.TransactionNumber, completed.Type, completed.Amount,
			completed.BalanceBefore, completed.BalanceAfter),
		actor, domain.SeverityInfo)
	e.notifyLargeAmount(ctx, completed)
	return completed, nil
}

// Cancel voids a transaction that has not been applied. Completed
// transactions are immutable and cannot be cancelled.
func (e *TransactionEngine) Cancel(ctx context.Context, txnID, actor string) (*domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionEngine.Cancel")
	defer span.End()

	txn, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TxnDraft && txn.Status != domain.TxnPending {
		return nil, &domain.ErrInvalidState{
			Entity: "transaction", ID: txn.ID,
			Status: string(txn.Status), Action: "cancel",
		}
	}

	txn.Status = domain.TxnCancelled
	if err := e.store.UpdateTransaction(ctx, txn); err != nil {
		return nil, err
	}
	e.audit.Record(ctx, domain.AuditTransaction, "transaction", txn.ID, txn.AccountID,
		"cancelled "+txn.TransactionNumber, actor, domain.SeverityInfo)
	return txn, nil
}

// Reverse compensates a completed transaction by posting and completing
// one of the inverse type for the same amount. The reversal references
// the original; the original record is never touched.
func (e *TransactionEngine) Reverse(ctx context.Context, txnID, reason, actor string) (*domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionEngine.Reverse")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", txnID))

	original, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.TxnCompleted {
		return nil, &domain.ErrInvalidState{
			Entity: "transaction", ID: original.ID,
			Status: string(original.Status), Action: "reverse",
		}
	}

	inverseType, err := original.Type.ReversalType()
	if err != nil {
		return nil, err
	}
	number, err := e.store.NextTransactionNumber(ctx)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = "reversal of " + original.TransactionNumber
	}
	reversal := &domain.Transaction{
		ID:                uuid.NewString(),
		TransactionNumber: number,
		AccountID:         original.AccountID,
		Type:              inverseType,
		Amount:            original.Amount,
		BalanceBefore:     domain.Zero(original.Amount.Currency),
		BalanceAfter:      domain.Zero(original.Amount.Currency),
		Status:            domain.TxnPending,
		Description:       reason,
		Reference:         original.Reference,
		TransferID:        original.TransferID,
		ReversalOf:        original.ID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := e.store.CreateTransaction(ctx, reversal); err != nil {
		return nil, err
	}

	completed, err := e.Complete(ctx, reversal.ID, actor)
	if err != nil {
		return nil, err
	}

	e.metrics.IncrReversal()
	e.audit.Record(ctx, domain.AuditReversal, "transaction", original.ID, original.AccountID,
		fmt.Sprintf("reversed %s by %s: %s", original.TransactionNumber, completed.TransactionNumber, reason),
		actor, domain.SeverityWarning)
	return completed, nil
}

// Get returns one transaction by ID.
func (e *TransactionEngine) Get(ctx context.Context, txnID string) (*domain.Transaction, error) {
	return e.store.GetTransaction(ctx, txnID)
}

// Statement returns an account's transactions newest first, optionally
// bounded to a time window.
func (e *TransactionEngine) Statement(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.Transaction, error) {
	ctx, span := txnTracer.Start(ctx, "TransactionEngine.Statement")
	defer span.End()

	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.store.ListTransactionsByAccount(ctx, accountID, from, to, page, pageSize)
}

func (e *TransactionEngine) failTransaction(ctx context.Context, txn *domain.Transaction, reason, actor string) {
	txn.Status = domain.TxnFailed
	if err := e.store.UpdateTransaction(ctx, txn); err != nil {
		e.logger.Error("failed to persist failed transaction",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}
	e.metrics.IncrTransaction(string(txn.Type), string(domain.TxnFailed))
	e.audit.Record(ctx, domain.AuditTransaction, "transaction", txn.ID, txn.AccountID,
		"failed "+txn.TransactionNumber+": "+reason, actor, domain.SeverityWarning)
}

func (e *TransactionEngine) notifyLargeAmount(ctx context.Context, txn *domain.Transaction) {
	if txn.Amount.Amount.Cmp(e.alertThreshold) < 0 {
		return
	}
	account, err := e.store.GetAccount(ctx, txn.AccountID)
	if err != nil {
		e.logger.Warn("large-amount notification skipped",
			zap.String("transaction_id", txn.ID), zap.Error(err))
		return
	}
	subject := fmt.Sprintf("Large transaction on account %s", account.AccountNumber)
	message := fmt.Sprintf("%s of %s completed (%s).", txn.Type, txn.Amount, txn.TransactionNumber)
	if _, err := e.notifier.Request(ctx, account.CustomerID, domain.ChannelInApp, subject, message, domain.PriorityHigh); err != nil {
		e.logger.Warn("large-amount notification request failed",
			zap.String("transaction_id", txn.ID), zap.Error(err))
	}
}
