// Package service provides the business logic layer: the account
// ledger, the transaction engine, the transfer orchestrator, and the
// audit/notification services around them.
package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/infra/locker"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/port"
)

var ledgerTracer = otel.Tracer("service/ledger")

// Ledger owns account balance state. Debit and Credit are the only
// operations that change a balance, and both run under a per-account
// exclusivity scope so the check-then-mutate sequence is atomic.
// Operations on different accounts proceed independently.
type Ledger struct {
	store   port.AccountStore
	locks   *locker.Keyed
	audit   *AuditService
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLedger creates the account ledger.
func NewLedger(store port.AccountStore, locks *locker.Keyed, audit *AuditService, metrics *observability.Metrics, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, locks: locks, audit: audit, metrics: metrics, logger: logger}
}

// WithAccount runs fn while holding the exclusivity scope for the
// account. The transaction engine and the transfer daily-limit check
// compose their read-check-mutate sequences through it.
func (l *Ledger) WithAccount(accountID string, fn func() error) error {
	return l.locks.Do(accountID, fn)
}

// Credit increases the account balance. Always succeeds for a valid
// positive amount on an existing account.
func (l *Ledger) Credit(ctx context.Context, accountID string, amount domain.Money, actor string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Credit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var account *domain.Account
	err := l.WithAccount(accountID, func() error {
		var err error
		account, err = l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		return l.CreditLocked(ctx, account, amount, actor)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Debit decreases the account balance, failing with InsufficientFunds
// when the available balance does not cover the amount. The balance is
// left unchanged on any error.
func (l *Ledger) Debit(ctx context.Context, accountID string, amount domain.Money, actor string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Debit")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	var account *domain.Account
	err := l.WithAccount(accountID, func() error {
		var err error
		account, err = l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		return l.DebitLocked(ctx, account, amount, actor)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// CreditLocked applies a credit to an already-loaded account. The
// caller must hold the account's exclusivity scope.
func (l *Ledger) CreditLocked(ctx context.Context, account *domain.Account, amount domain.Money, actor string) error {
	if err := validateAmount(amount, account.Currency); err != nil {
		return err
	}

	newBalance, err := account.Balance.Add(amount)
	if err != nil {
		return err
	}
	account.Balance = newBalance
	account.Recompute()

	if err := l.store.UpdateAccount(ctx, account); err != nil {
		return err
	}

	l.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
		fmt.Sprintf("balance credited %s, new balance %s", amount, account.Balance),
		actor, domain.SeverityInfo)
	return nil
}

// DebitLocked applies a debit to an already-loaded account. The caller
// must hold the account's exclusivity scope.
func (l *Ledger) DebitLocked(ctx context.Context, account *domain.Account, amount domain.Money, actor string) error {
	if err := validateAmount(amount, account.Currency); err != nil {
		return err
	}

	short, err := account.AvailableBalance.LessThan(amount)
	if err != nil {
		return err
	}
	if short {
		l.metrics.IncrInsufficientFunds()
		return &domain.ErrInsufficientFunds{
			AccountID: account.ID,
			Available: account.AvailableBalance,
			Required:  amount,
		}
	}

	newBalance, err := account.Balance.Sub(amount)
	if err != nil {
		return err
	}
	account.Balance = newBalance
	account.Recompute()

	if err := l.store.UpdateAccount(ctx, account); err != nil {
		return err
	}

	l.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
		fmt.Sprintf("balance debited %s, new balance %s", amount, account.Balance),
		actor, domain.SeverityInfo)
	return nil
}

// Hold earmarks funds without debiting them. The held amount reduces
// the available balance until released.
func (l *Ledger) Hold(ctx context.Context, accountID string, amount domain.Money, actor string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.Hold")
	defer span.End()

	var account *domain.Account
	err := l.WithAccount(accountID, func() error {
		var err error
		account, err = l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := validateAmount(amount, account.Currency); err != nil {
			return err
		}

		short, err := account.AvailableBalance.LessThan(amount)
		if err != nil {
			return err
		}
		if short {
			return &domain.ErrInsufficientFunds{
				AccountID: account.ID,
				Available: account.AvailableBalance,
				Required:  amount,
			}
		}

		newHold, err := account.HoldAmount.Add(amount)
		if err != nil {
			return err
		}
		account.HoldAmount = newHold
		account.Recompute()

		if err := l.store.UpdateAccount(ctx, account); err != nil {
			return err
		}
		l.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
			fmt.Sprintf("hold placed %s, hold total %s", amount, account.HoldAmount),
			actor, domain.SeverityInfo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// ReleaseHold frees previously earmarked funds.
func (l *Ledger) ReleaseHold(ctx context.Context, accountID string, amount domain.Money, actor string) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "Ledger.ReleaseHold")
	defer span.End()

	var account *domain.Account
	err := l.WithAccount(accountID, func() error {
		var err error
		account, err = l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if err := validateAmount(amount, account.Currency); err != nil {
			return err
		}

		tooMuch, err := account.HoldAmount.LessThan(amount)
		if err != nil {
			return err
		}
		if tooMuch {
			return &domain.ErrValidation{Field: "amount", Message: "release exceeds held amount"}
		}

		newHold, err := account.HoldAmount.Sub(amount)
		if err != nil {
			return err
		}
		account.HoldAmount = newHold
		account.Recompute()

		if err := l.store.UpdateAccount(ctx, account); err != nil {
			return err
		}
		l.audit.Record(ctx, domain.AuditUpdate, "account", account.ID, account.ID,
			fmt.Sprintf("hold released %s, hold total %s", amount, account.HoldAmount),
			actor, domain.SeverityInfo)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func validateAmount(amount domain.Money, currency string) error {
	if !amount.IsPositive() {
		return &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if amount.Currency != currency {
		return &domain.ErrValidation{
			Field:   "currency",
			Message: fmt.Sprintf("amount currency %s does not match account currency %s", amount.Currency, currency),
		}
	}
	return nil
}
