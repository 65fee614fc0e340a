// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/altbank/corebank/internal/domain"
)

// AccountStore persists accounts, keyed by ID and by account number.
type AccountStore interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	ListAccounts(ctx context.Context, customerID string) ([]domain.Account, error)
}

// TransactionStore persists transactions, indexed by owning account and
// by creation time for statement queries.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, txn *domain.Transaction) error
	GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, txn *domain.Transaction) error
	ListTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.Transaction, error)
	// NextTransactionNumber issues the next sequential human-readable
	// transaction number (TXN00000001, ...).
	NextTransactionNumber(ctx context.Context) (string, error)
}

// TransferStore persists transfers and answers the same-day completed
// volume query used by the daily-limit check.
type TransferStore interface {
	CreateTransfer(ctx context.Context, transfer *domain.Transfer) error
	GetTransfer(ctx context.Context, transferID string) (*domain.Transfer, error)
	UpdateTransfer(ctx context.Context, transfer *domain.Transfer) error
	ListTransfersByAccount(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transfer, error)
	// SumCompletedTransfersSince returns the sum of amounts of completed
	// transfers from the account completed at or after the cutoff.
	SumCompletedTransfersSince(ctx context.Context, accountID string, since time.Time, currency string) (domain.Money, error)
	NextTransferNumber(ctx context.Context) (string, error)
}

// AuditStore is the append-only audit sink. No update or delete path is
// exposed; MarkArchivedBefore flags old entries without mutating their
// recorded content.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error
	ListAuditByRecord(ctx context.Context, model, recordID string) ([]domain.AuditLogEntry, error)
	ListAuditByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.AuditLogEntry, error)
	MarkArchivedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationStore persists notification delivery bookkeeping.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
	UpdateNotification(ctx context.Context, n *domain.Notification) error
	GetNotification(ctx context.Context, id string) (*domain.Notification, error)
	ListNotifications(ctx context.Context, customerID string, page, pageSize int) ([]domain.Notification, error)
}

// Store aggregates the persistence ports implemented by a single backend.
type Store interface {
	AccountStore
	TransactionStore
	TransferStore
	AuditStore
	NotificationStore
}

// KYCChecker is the customer/KYC collaborator. Activate consults it
// before allowing an account into active status.
type KYCChecker interface {
	IsApproved(ctx context.Context, customerID string) (bool, error)
}

// RailGateway is the external payment rail collaborator for non-internal
// transfers. The call is synchronous: a returned error means the rail
// rejected or failed the transfer.
type RailGateway interface {
	Send(ctx context.Context, transfer *domain.Transfer) (reference, status string, err error)
}

// ChannelSender delivers one notification over its channel. The
// notification service owns retry bookkeeping around it.
type ChannelSender interface {
	Send(ctx context.Context, n *domain.Notification) (gatewayRef string, err error)
}
