package service

import (
	"context"
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

var transferTracer = otel.Tracer("service/transfers")

// TransferService orchestrates the two-phase movement of funds:
// debit leg first, then either an internal credit leg or an external
// rail call. A completed debit leg whose second phase fails is
// compensated automatically with a reversal before the failure is
// surfaced.
type TransferService struct {
	store    port.Store
	ledger   *Ledger
	engine   *TransactionEngine
	rail     port.RailGateway
	notifier *NotificationService
	audit    *AuditService
	metrics  *observability.Metrics
	logger   *zap.Logger

	// autoApproveCeiling is the amount below which Submit proceeds
	// straight to approval without an operator.
	autoApproveCeiling decimal.Decimal
}

// NewTransferService creates the orchestrator.
func NewTransferService(store port.Store, ledger *Ledger, engine *TransactionEngine, rail port.RailGateway, notifier *NotificationService, audit *AuditService, metrics *observability.Metrics, logger *zap.Logger, autoApproveCeiling decimal.Decimal) *TransferService {
	return &TransferService{
		store:              store,
		ledger:             ledger,
		engine:             engine,
		rail:               rail,
		notifier:           notifier,
		audit:              audit,
		metrics:            metrics,
		logger:             logger,
		autoApproveCeiling: autoApproveCeiling,
	}
}

// Create validates the request and records a draft transfer with its
// fee and total computed. Nothing moves until Submit.
func (s *TransferService) Create(ctx context.Context, req *domain.CreateTransferRequest, actor string) (*domain.Transfer, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.type", string(req.Type)))

	if !req.Type.Valid() {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown transfer type: " + string(req.Type)}
	}

	source, err := s.store.GetAccount(ctx, req.FromAccountID)
	if err != nil {
		return nil, err
	}

	amount, err := domain.NewMoney(req.Amount, source.Currency)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}

	// Exactly one destination form: an internal transfer names an
	// account in this ledger, an external one names a beneficiary.
	if req.Type.Internal() {
		if req.Beneficiary != nil {
			return nil, &domain.ErrValidation{Field: "beneficiary", Message: "not allowed for internal transfers"}
		}
		if req.ToAccountID == "" {
			return nil, &domain.ErrValidation{Field: "to_account_id", Message: "required for internal transfers"}
		}
		if req.ToAccountID == req.FromAccountID {
			return nil, &domain.ErrValidation{Field: "to_account_id", Message: "source and destination must differ"}
		}
		dest, err := s.store.GetAccount(ctx, req.ToAccountID)
		if err != nil {
			return nil, err
		}
		if dest.Currency != source.Currency {
			return nil, &domain.ErrValidation{Field: "to_account_id", Message: "destination currency differs from source"}
		}
	} else {
		if req.ToAccountID != "" {
			return nil, &domain.ErrValidation{Field: "to_account_id", Message: "not allowed for external transfers"}
		}
		if req.Beneficiary == nil || req.Beneficiary.Name == "" || req.Beneficiary.AccountNumber == "" {
			return nil, &domain.ErrValidation{Field: "beneficiary", Message: "name and account number required for external transfers"}
		}
	}

	fee := req.Type.Fee(amount)
	total, err := amount.Add(fee)
	if err != nil {
		return nil, err
	}

	number, err := s.store.NextTransferNumber(ctx)
	if err != nil {
		return nil, err
	}

	transfer := &domain.Transfer{
		ID:             uuid.NewString(),
		TransferNumber: number,
		Type:           req.Type,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Beneficiary:    req.Beneficiary,
		Amount:         amount,
		Fee:            fee,
		TotalAmount:    total,
		Status:         domain.TrfDraft,
		Description:    req.Description,
		Reference:      req.Reference,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditTransfer, "transfer", transfer.ID, transfer.FromAccountID,
		fmt.Sprintf("created %s %s %s (fee %s)", transfer.TransferNumber, transfer.Type, transfer.Amount, transfer.Fee),
		actor, domain.SeverityInfo)
	return transfer, nil
}

// Submit validates funds and the daily transfer limit under the source
// account scope and moves the transfer to pending. Amounts below the
// auto-approval ceiling proceed straight through Approve and Process.
func (s *TransferService) Submit(ctx context.Context, transferID, actor string) (*domain.Transfer, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", transferID))

	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TrfDraft {
		return nil, &domain.ErrInvalidState{
			Entity: "transfer", ID: transfer.ID,
			Status: string(transfer.Status), Action: "submit",
		}
	}

	err = s.ledger.WithAccount(transfer.FromAccountID, func() error {
		source, err := s.store.GetAccount(ctx, transfer.FromAccountID)
		if err != nil {
			return err
		}
		if source.Status != domain.AccountActive {
			return &domain.ErrInvalidState{
				Entity: "account", ID: source.ID,
				Status: string(source.Status), Action: "transfer from",
			}
		}

		short, err := source.AvailableBalance.LessThan(transfer.TotalAmount)
		if err != nil {
			return err
		}
		if short {
			s.metrics.IncrInsufficientFunds()
			return &domain.ErrInsufficientFunds{
				AccountID: source.ID,
				Available: source.AvailableBalance,
				Required:  transfer.TotalAmount,
			}
		}

		if err := s.checkDailyLimit(ctx, source, transfer.Amount); err != nil {
			return err
		}

		transfer.Status = domain.TrfPending
		return s.store.UpdateTransfer(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditTransfer, "transfer", transfer.ID, transfer.FromAccountID,
		"submitted "+transfer.TransferNumber, actor, domain.SeverityInfo)

	if transfer.Amount.Amount.Cmp(s.autoApproveCeiling) < 0 {
		return s.Approve(ctx, transfer.ID, "system")
	}
	return transfer, nil
}

// Approve records the approver and runs Process. Only pending
// transfers can be approved.
func (s *TransferService) Approve(ctx context.Context, transferID, approver string) (*domain.Transfer, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", transferID))

	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TrfPending {
		return nil, &domain.ErrInvalidState{
			Entity: "transfer", ID: transfer.ID,
			Status: string(transfer.Status), Action: "approve",
		}
	}

	now := time.Now().UTC()
	transfer.Status = domain.TrfApproved
	transfer.ApprovedBy = approver
	transfer.ApprovedAt = &now
	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditApprove, "transfer", transfer.ID, transfer.FromAccountID,
		"approved "+transfer.TransferNumber, approver, domain.SeverityInfo)

	return s.Process(ctx, transfer.ID, approver)
}

// Reject declines a transfer before processing and records the reason.
func (s *TransferService) Reject(ctx context.Context, transferID, reason, actor string) (*domain.Transfer, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Reject")
	defer span.End()

	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.Cancellable() {
		return nil, &domain.ErrInvalidState{
			Entity: "transfer", ID: transfer.ID,
			Status: string(transfer.Status), Action: "reject",
		}
	}

	transfer.Status = domain.TrfCancelled
	transfer.RejectionReason = reason
	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditReject, "transfer", transfer.ID, transfer.FromAccountID,
		"rejected "+transfer.TransferNumber+": "+reason, actor, domain.SeverityWarning)
	return transfer, nil
}

// Cancel withdraws a transfer before processing.
func (s *TransferService) Cancel(ctx context.Context, transferID, actor string) (*domain.Transfer, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Cancel")
	defer span.End()

	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !transfer.Cancellable() {
		return nil, &domain.ErrInvalidState{
			Entity: "transfer", ID: transfer.ID,
			Status: string(transfer.Status), Action: "cancel",
		}
	}

	transfer.Status = domain.TrfCancelled
	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditTransfer, "transfer", transfer.ID, transfer.FromAccountID,
		"cancelled "+transfer.TransferNumber, actor, domain.SeverityInfo)
	return transfer, nil
}

// Process executes an approved transfer: debit leg for the total
// amount, then the credit leg (internal) or the rail call (external).
// A second-phase failure after a completed debit leg reverses the debit
// and surfaces ErrInconsistentTransfer.
func (s *TransferService) Process(ctx context.Context, transferID, actor string) (*domain.Transfer, error) {
	ctx, span := transferTracer.Start(ctx, "TransferService.Process")
	defer span.End()
	span.SetAttributes(attribute.String("transfer.id", transferID))

	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("transfer_process", time.Since(start)) }()

	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != domain.TrfApproved {
		return nil, &domain.ErrInvalidState{
			Entity: "transfer", ID: transfer.ID,
			Status: string(transfer.Status), Action: "process",
		}
	}

	transfer.Status = domain.TrfProcessing
	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	debit, err := s.postAndComplete(ctx, &domain.PostTransactionRequest{
		AccountID:   transfer.FromAccountID,
		Type:        domain.TxTransferOut,
		Amount:      transfer.TotalAmount.Amount.String(),
		Description: fmt.Sprintf("%s %s", transfer.TransferNumber, transfer.Description),
		Reference:   transfer.Reference,
		TransferID:  transfer.ID,
	}, actor)
	if err != nil {
		if debit != nil {
			transfer.DebitTransactionID = debit.ID
		}
		s.failTransfer(ctx, transfer, "debit leg failed: "+err.Error(), actor)
		return nil, err
	}
	transfer.DebitTransactionID = debit.ID

	if transfer.Type.Internal() {
		credit, err := s.postAndComplete(ctx, &domain.PostTransactionRequest{
			AccountID:   transfer.ToAccountID,
			Type:        domain.TxTransferIn,
			Amount:      transfer.Amount.Amount.String(),
			Description: fmt.Sprintf("%s %s", transfer.TransferNumber, transfer.Description),
			Reference:   transfer.Reference,
			TransferID:  transfer.ID,
		}, actor)
		if err != nil {
			return nil, s.compensate(ctx, transfer, debit, "credit leg failed: "+err.Error(), actor)
		}
		transfer.CreditTransactionID = credit.ID
	} else {
		reference, status, err := s.rail.Send(ctx, transfer)
		if err != nil {
			s.metrics.IncrRailError()
			return nil, s.compensate(ctx, transfer, debit, "rail call failed: "+err.Error(), actor)
		}
		transfer.GatewayReference = reference
		transfer.GatewayStatus = status
	}

	now := time.Now().UTC()
	transfer.Status = domain.TrfCompleted
	transfer.CompletedAt = &now
	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	s.metrics.IncrTransfer(string(transfer.Type), string(domain.TrfCompleted))
	s.audit.Record(ctx, domain.AuditTransfer, "transfer", transfer.ID, transfer.FromAccountID,
		fmt.Sprintf("completed %s %s %s", transfer.TransferNumber, transfer.Type, transfer.Amount),
		actor, domain.SeverityInfo)
	s.notifyCompleted(ctx, transfer)
	return transfer, nil
}

// Get returns one transfer by ID.
func (s *TransferService) Get(ctx context.Context, transferID string) (*domain.Transfer, error) {
	return s.store.GetTransfer(ctx, transferID)
}

// List returns an account's transfers, newest first.
func (s *TransferService) List(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transfer, error) {
	return s.store.ListTransfersByAccount(ctx, accountID, page, pageSize)
}

// checkDailyLimit enforces the same-day completed-transfer ceiling.
// Caller holds the source account scope.
func (s *TransferService) checkDailyLimit(ctx context.Context, source *domain.Account, amount domain.Money) error {
	if !source.DailyTransferLimit.IsPositive() {
		return nil
	}
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	today, err := s.store.SumCompletedTransfersSince(ctx, source.ID, startOfDay, source.Currency)
	if err != nil {
		return err
	}
	attempted, err := today.Add(amount)
	if err != nil {
		return err
	}
	over, err := source.DailyTransferLimit.LessThan(attempted)
	if err != nil {
		return err
	}
	if over {
		s.metrics.IncrLimitRejection()
		return &domain.ErrDailyLimitExceeded{
			AccountID: source.ID,
			Limit:     source.DailyTransferLimit,
			Attempted: attempted,
		}
	}
	return nil
}

// postAndComplete runs one transaction leg end to end. On a Post
// failure the returned transaction is nil; on a Complete failure it is
// the pending-or-failed record.
func (s *TransferService) postAndComplete(ctx context.Context, req *domain.PostTransactionRequest, actor string) (*domain.Transaction, error) {
	txn, err := s.engine.Post(ctx, req, actor)
	if err != nil {
		return nil, err
	}
	completed, err := s.engine.Complete(ctx, txn.ID, actor)
	if err != nil {
		return txn, err
	}
	return completed, nil
}

// compensate reverses a completed debit leg after a second-phase
// failure and marks the transfer failed. The returned error is always
// ErrInconsistentTransfer wrapping the original reason.
func (s *TransferService) compensate(ctx context.Context, transfer *domain.Transfer, debit *domain.Transaction, reason, actor string) error {
	s.logger.Warn("compensating completed debit leg",
		zap.String("transfer_id", transfer.ID),
		zap.String("debit_transaction_id", debit.ID),
		zap.String("reason", reason))

	if _, err := s.engine.Reverse(ctx, debit.ID, "compensation for "+transfer.TransferNumber, "system"); err != nil {
		// The debit leg stands with no matching credit. Surface at
		// critical severity for operator follow-up.
		s.audit.Record(ctx, domain.AuditTransfer, "transfer", transfer.ID, transfer.FromAccountID,
			fmt.Sprintf("compensation failed for %s: %v", transfer.TransferNumber, err),
			"system", domain.SeverityCritical)
	}

	s.failTransfer(ctx, transfer, reason, actor)
	return &domain.ErrInconsistentTransfer{
		TransferID: transfer.ID,
		DebitTxnID: debit.ID,
		Reason:     reason,
	}
}

func (s *TransferService) failTransfer(ctx context.Context, transfer *domain.Transfer, reason, actor string) {
	transfer.Status = domain.TrfFailed
	transfer.FailureReason = reason
	if err := s.store.UpdateTransfer(ctx, transfer); err != nil {
		s.logger.Error("failed to persist failed transfer",
			zap.String("transfer_id", transfer.ID), zap.Error(err))
	}
	s.metrics.IncrTransfer(string(transfer.Type), string(domain.TrfFailed))
	s.audit.Record(ctx, domain.AuditTransfer, "transfer", transfer.ID, transfer.FromAccountID,
		"failed "+transfer.TransferNumber+": "+reason, actor, domain.SeverityWarning)
}

func (s *TransferService) notifyCompleted(ctx context.Context, transfer *domain.Transfer) {
	source, err := s.store.GetAccount(ctx, transfer.FromAccountID)
	if err != nil {
		s.logger.Warn("transfer notification skipped",
			zap.String("transfer_id", transfer.ID), zap.Error(err))
		return
	}
	subject := "Transfer " + transfer.TransferNumber + " completed"
	message := fmt.Sprintf("Transfer of %s (%s) from account %s completed.",
		transfer.Amount, transfer.Type, source.AccountNumber)
	if _, err := s.notifier.Request(ctx, source.CustomerID, domain.ChannelEmail, subject, message, domain.PriorityNormal); err != nil {
		s.logger.Warn("transfer notification request failed",
			zap.String("transfer_id", transfer.ID), zap.Error(err))
	}
}
