// Package memstore is an in-memory implementation of the persistence
// ports. It backs tests and single-node deployments; the postgres
// package provides the durable alternative behind the same interfaces.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/altbank/corebank/internal/domain"
)

// Store holds all engine state behind one RWMutex. Logical atomicity of
// the read-check-mutate sequences lives in the per-account locker owned
// by the service layer; this mutex only protects map access.
type Store struct {
	mu sync.RWMutex

	accounts      map[string]*domain.Account
	accountByNum  map[string]string // account number -> id
	transactions  map[string]*domain.Transaction
	txnByAccount  map[string][]string
	transfers     map[string]*domain.Transfer
	trfByAccount  map[string][]string
	auditEntries  []*domain.AuditLogEntry
	notifications map[string]*domain.Notification
	notifByCust   map[string][]string

	txnSeq int64
	trfSeq int64
}

// New creates an empty store.
func New() *Store {
	return &Store{
		accounts:      make(map[string]*domain.Account),
		accountByNum:  make(map[string]string),
		transactions:  make(map[string]*domain.Transaction),
		txnByAccount:  make(map[string][]string),
		transfers:     make(map[string]*domain.Transfer),
		trfByAccount:  make(map[string][]string),
		notifications: make(map[string]*domain.Notification),
		notifByCust:   make(map[string][]string),
	}
}

// ============================================================
// Accounts
// ============================================================

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return &domain.ErrValidation{Field: "id", Message: "account already exists: " + account.ID}
	}
	if _, exists := s.accountByNum[account.AccountNumber]; exists {
		return &domain.ErrValidation{Field: "account_number", Message: "account number already exists: " + account.AccountNumber}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	s.accountByNum[account.AccountNumber] = account.ID
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.accountByNum[accountNumber]
	s.mu.RUnlock()
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountNumber}
	}
	return s.GetAccount(ctx, id)
}

func (s *Store) UpdateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; !ok {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}
	cp := *account
	cp.UpdatedAt = time.Now().UTC()
	s.accounts[account.ID] = &cp
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, customerID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Account
	for _, a := range s.accounts {
		if customerID == "" || a.CustomerID == customerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[txn.ID]; exists {
		return &domain.ErrValidation{Field: "id", Message: "transaction already exists: " + txn.ID}
	}
	cp := *txn
	s.transactions[txn.ID] = &cp
	s.txnByAccount[txn.AccountID] = append(s.txnByAccount[txn.AccountID], txn.ID)
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[txnID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txnID}
	}
	cp := *t
	return &cp, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[txn.ID]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: txn.ID}
	}
	cp := *txn
	s.transactions[txn.ID] = &cp
	return nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transaction
	for _, id := range s.txnByAccount[accountID] {
		t := s.transactions[id]
		if !from.IsZero() && t.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && t.CreatedAt.After(to) {
			continue
		}
		out = append(out, *t)
	}
	// Statement order: newest first.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, pageSize), nil
}

func (s *Store) NextTransactionNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txnSeq++
	return fmt.Sprintf("TXN%08d", s.txnSeq), nil
}

// ============================================================
// Transfers
// ============================================================

func (s *Store) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transfers[transfer.ID]; exists {
		return &domain.ErrValidation{Field: "id", Message: "transfer already exists: " + transfer.ID}
	}
	cp := *transfer
	s.transfers[transfer.ID] = &cp
	s.trfByAccount[transfer.FromAccountID] = append(s.trfByAccount[transfer.FromAccountID], transfer.ID)
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, transferID string) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transfers[transferID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transfer", ID: transferID}
	}
	cp := *t
	return &cp, nil
}

func (s *Store) UpdateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transfers[transfer.ID]; !ok {
		return &domain.ErrNotFound{Resource: "transfer", ID: transfer.ID}
	}
	cp := *transfer
	s.transfers[transfer.ID] = &cp
	return nil
}

func (s *Store) ListTransfersByAccount(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Transfer
	for _, id := range s.trfByAccount[accountID] {
		out = append(out, *s.transfers[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, pageSize), nil
}

func (s *Store) SumCompletedTransfersSince(ctx context.Context, accountID string, since time.Time, currency string) (domain.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := domain.Zero(currency)
	for _, id := range s.trfByAccount[accountID] {
		t := s.transfers[id]
		if t.Status != domain.TrfCompleted || t.CompletedAt == nil || t.CompletedAt.Before(since) {
			continue
		}
		next, err := sum.Add(t.Amount)
		if err != nil {
			return domain.Money{}, err
		}
		sum = next
	}
	return sum, nil
}

func (s *Store) NextTransferNumber(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trfSeq++
	return fmt.Sprintf("TRF%08d", s.trfSeq), nil
}

// ============================================================
// Audit log
// ============================================================

func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.auditEntries = append(s.auditEntries, &cp)
	return nil
}

func (s *Store) ListAuditByRecord(ctx context.Context, model, recordID string) ([]domain.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditLogEntry
	for _, e := range s.auditEntries {
		if e.Model == model && e.RecordID == recordID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *Store) ListAuditByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.AuditLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AuditLogEntry
	for _, e := range s.auditEntries {
		if accountID != "" && e.AccountID != accountID {
			continue
		}
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return paginate(out, page, pageSize), nil
}

func (s *Store) MarkArchivedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archived := 0
	for _, e := range s.auditEntries {
		if !e.Archived && e.Timestamp.Before(cutoff) {
			e.Archived = true
			archived++
		}
	}
	return archived, nil
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	s.notifications[n.ID] = &cp
	s.notifByCust[n.CustomerID] = append(s.notifByCust[n.CustomerID], n.ID)
	return nil
}

func (s *Store) UpdateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; !ok {
		return &domain.ErrNotFound{Resource: "notification", ID: n.ID}
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	cp := *n
	return &cp, nil
}

func (s *Store) ListNotifications(ctx context.Context, customerID string, page, pageSize int) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Notification
	for _, id := range s.notifByCust[customerID] {
		out = append(out, *s.notifications[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page, pageSize), nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		return items
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
