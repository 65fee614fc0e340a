package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/port"
)

var accountTracer = otel.Tracer("service/accounts")

// Default per-day ceilings applied at Open.
var (
	defaultDailyWithdrawalLimit = "50000"
	defaultDailyTransferLimit   = "100000"
)

// accountNumberAttempts bounds the collision-check loop at Open.
const accountNumberAttempts = 10

// AccountService owns the account lifecycle:
// draft (Open) → active (Activate, KYC-gated) → frozen (Freeze) and
// back (Unfreeze) → closed (Close, zero balance required).
type AccountService struct {
	store    port.AccountStore
	kyc      port.KYCChecker
	locks    locksCoordinator
	notifier *NotificationService
	audit    *AuditService
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// locksCoordinator is the per-account scope the ledger exposes.
type locksCoordinator interface {
	WithAccount(accountID string, fn func() error) error
}

// NewAccountService creates the lifecycle service.
func NewAccountService(store port.AccountStore, kyc port.KYCChecker, locks locksCoordinator, notifier *NotificationService, audit *AuditService, metrics *observability.Metrics, logger *zap.Logger) *AccountService {
	return &AccountService{
		store:    store,
		kyc:      kyc,
		locks:    locks,
		notifier: notifier,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Open creates a draft account with a system-generated 12-digit account
// number and default daily limits. The account cannot transact until
// activated.
func (s *AccountService) Open(ctx context.Context, req *domain.OpenAccountRequest, actor string) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.Open")
	defer span.End()
	span.SetAttributes(attribute.String("account.type", string(req.Type)))

	if req.CustomerID == "" {
		return nil, &domain.ErrValidation{Field: "customer_id", Message: "required"}
	}
	if req.Name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "required"}
	}
	if !req.Type.Valid() {
		return nil, &domain.ErrValidation{Field: "account_type", Message: "unknown type: " + string(req.Type)}
	}
	if req.Currency == "" {
		return nil, &domain.ErrValidation{Field: "currency", Message: "required"}
	}

	number, err := s.generateAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	account := &domain.Account{
		ID:                   uuid.NewString(),
		AccountNumber:        number,
		Name:                 req.Name,
		CustomerID:           req.CustomerID,
		Type:                 req.Type,
		Currency:             req.Currency,
		Balance:              domain.Zero(req.Currency),
		HoldAmount:           domain.Zero(req.Currency),
		Status:               domain.AccountDraft,
		DailyWithdrawalLimit: domain.MustMoney(defaultDailyWithdrawalLimit, req.Currency),
		DailyTransferLimit:   domain.MustMoney(defaultDailyTransferLimit, req.Currency),
		Branch:               req.Branch,
		OpenedAt:             now,
		UpdatedAt:            now,
	}
	account.Recompute()

	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditCreate, "account", account.ID, account.ID,
		fmt.Sprintf("opened %s account %s for customer %s", account.Type, account.AccountNumber, account.CustomerID),
		actor, domain.SeverityInfo)
	return account, nil
}

// Activate moves a draft account to active after the customer's KYC
// check passes.
func (s *AccountService) Activate(ctx context.Context, accountID, actor string) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.Activate")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountDraft {
		return nil, &domain.ErrInvalidState{
			Entity: "account", ID: account.ID,
			Status: string(account.Status), Action: "activate",
		}
	}

	approved, err := s.kyc.IsApproved(ctx, account.CustomerID)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "kyc", Err: err}
	}
	if !approved {
		return nil, &domain.ErrInvalidState{
			Entity: "account", ID: account.ID,
			Status: string(account.Status), Action: "activate without KYC approval",
		}
	}

	account.Status = domain.AccountActive
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
		"activated account "+account.AccountNumber, actor, domain.SeverityInfo)

	subject := "Account " + account.AccountNumber + " is active"
	message := fmt.Sprintf("Your %s account %s is now active.", account.Type, account.AccountNumber)
	if _, err := s.notifier.Request(ctx, account.CustomerID, domain.ChannelEmail, subject, message, domain.PriorityNormal); err != nil {
		s.logger.Warn("activation notification request failed",
			zap.String("account_id", account.ID), zap.Error(err))
	}
	return account, nil
}

// Freeze suspends an active account. Frozen accounts reject postings
// and transfers until unfrozen.
func (s *AccountService) Freeze(ctx context.Context, accountID, reason, actor string) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.Freeze")
	defer span.End()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountActive {
		return nil, &domain.ErrInvalidState{
			Entity: "account", ID: account.ID,
			Status: string(account.Status), Action: "freeze",
		}
	}

	account.Status = domain.AccountFrozen
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
		"froze account "+account.AccountNumber+": "+reason, actor, domain.SeverityWarning)
	return account, nil
}

// Unfreeze restores a frozen account to active.
func (s *AccountService) Unfreeze(ctx context.Context, accountID, actor string) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.Unfreeze")
	defer span.End()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status != domain.AccountFrozen {
		return nil, &domain.ErrInvalidState{
			Entity: "account", ID: account.ID,
			Status: string(account.Status), Action: "unfreeze",
		}
	}

	account.Status = domain.AccountActive
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
		"unfroze account "+account.AccountNumber, actor, domain.SeverityInfo)
	return account, nil
}

// Close terminates an account. The balance and hold must both be zero;
// the closing date is recorded and the state is terminal.
func (s *AccountService) Close(ctx context.Context, accountID, actor string) (*domain.Account, error) {
	ctx, span := accountTracer.Start(ctx, "AccountService.Close")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var account *domain.Account
	err := s.locks.WithAccount(accountID, func() error {
		var err error
		account, err = s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Status == domain.AccountClosed {
			return &domain.ErrInvalidState{
				Entity: "account", ID: account.ID,
				Status: string(account.Status), Action: "close",
			}
		}
		if !account.Balance.IsZero() || !account.HoldAmount.IsZero() {
			return &domain.ErrValidation{
				Field:   "balance",
				Message: fmt.Sprintf("account must be settled before closing: balance %s, hold %s", account.Balance, account.HoldAmount),
			}
		}

		now := time.Now().UTC()
		account.Status = domain.AccountClosed
		account.ClosedAt = &now
		return s.store.UpdateAccount(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
		"closed account "+account.AccountNumber, actor, domain.SeverityWarning)
	return account, nil
}

// Get returns one account by ID.
func (s *AccountService) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// GetByNumber returns one account by its human-facing number.
func (s *AccountService) GetByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.store.GetAccountByNumber(ctx, accountNumber)
}

// List returns a customer's accounts.
func (s *AccountService) List(ctx context.Context, customerID string) ([]domain.Account, error) {
	return s.store.ListAccounts(ctx, customerID)
}

// generateAccountNumber draws random 12-digit numbers until one is
// unused.
func (s *AccountService) generateAccountNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < accountNumberAttempts; attempt++ {
		candidate := fmt.Sprintf("%012d", rand.Int63n(1_000_000_000_000))
		_, err := s.store.GetAccountByNumber(ctx, candidate)
		if err == nil {
			continue
		}
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return candidate, nil
		}
		return "", err
	}
	return "", fmt.Errorf("could not allocate a unique account number after %d attempts", accountNumberAttempts)
}
