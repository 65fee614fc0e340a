// Package postgres is the durable gorm/PostgreSQL implementation of the
// persistence ports. Selected with STORE_DRIVER=postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/altbank/corebank/internal/domain"
)

// Open connects to PostgreSQL and migrates the engine schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(
		&accountRow{}, &transactionRow{}, &transferRow{},
		&auditRow{}, &notificationRow{}, &sequenceRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// Store implements port.Store on top of gorm.
type Store struct {
	db *gorm.DB
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ============================================================
// Rows
// ============================================================

type accountRow struct {
	ID                   string `gorm:"primaryKey"`
	AccountNumber        string `gorm:"uniqueIndex"`
	Name                 string
	CustomerID           string `gorm:"index"`
	Type                 string
	Currency             string
	Balance              decimal.Decimal `gorm:"type:numeric(20,6)"`
	HoldAmount           decimal.Decimal `gorm:"type:numeric(20,6)"`
	Status               string
	DailyWithdrawalLimit decimal.Decimal `gorm:"type:numeric(20,6)"`
	DailyTransferLimit   decimal.Decimal `gorm:"type:numeric(20,6)"`
	Branch               string
	OpenedAt             time.Time
	ClosedAt             *time.Time
	UpdatedAt            time.Time
}

func (accountRow) TableName() string { return "accounts" }

type transactionRow struct {
	ID                string `gorm:"primaryKey"`
	TransactionNumber string `gorm:"uniqueIndex"`
	AccountID         string `gorm:"index:idx_txn_account_time,priority:1"`
	Type              string
	Amount            decimal.Decimal `gorm:"type:numeric(20,6)"`
	Currency          string
	BalanceBefore     decimal.Decimal `gorm:"type:numeric(20,6)"`
	BalanceAfter      decimal.Decimal `gorm:"type:numeric(20,6)"`
	Status            string
	Description       string
	Reference         string
	TransferID        string
	LoanID            string
	ReversalOf        string
	CreatedAt         time.Time `gorm:"index:idx_txn_account_time,priority:2"`
	CompletedAt       *time.Time
}

func (transactionRow) TableName() string { return "transactions" }

type transferRow struct {
	ID                   string `gorm:"primaryKey"`
	TransferNumber       string `gorm:"uniqueIndex"`
	Type                 string
	FromAccountID        string `gorm:"index"`
	ToAccountID          string
	BeneficiaryName      string
	BeneficiaryAccount   string
	BeneficiaryBank      string
	BeneficiaryIFSC      string
	Amount               decimal.Decimal `gorm:"type:numeric(20,6)"`
	Fee                  decimal.Decimal `gorm:"type:numeric(20,6)"`
	Currency             string
	Status               string `gorm:"index"`
	Description          string
	Reference            string
	ApprovedBy           string
	ApprovedAt           *time.Time
	RejectionReason      string
	DebitTransactionID   string
	CreditTransactionID  string
	GatewayReference     string
	GatewayStatus        string
	FailureReason        string
	CreatedAt            time.Time
	CompletedAt          *time.Time `gorm:"index"`
}

func (transferRow) TableName() string { return "transfers" }

type auditRow struct {
	ID          string `gorm:"primaryKey"`
	Action      string
	Model       string `gorm:"index:idx_audit_record,priority:1"`
	RecordID    string `gorm:"index:idx_audit_record,priority:2"`
	AccountID   string `gorm:"index"`
	Description string
	Actor       string
	Severity    string
	OldValues   string
	NewValues   string
	Timestamp   time.Time `gorm:"index"`
	Archived    bool
}

func (auditRow) TableName() string { return "audit_log" }

type notificationRow struct {
	ID               string `gorm:"primaryKey"`
	CustomerID       string `gorm:"index"`
	Channel          string
	Subject          string
	Message          string
	Priority         string
	Status           string
	RetryCount       int
	ErrorMessage     string
	GatewayReference string
	SentAt           *time.Time
	CreatedAt        time.Time
}

func (notificationRow) TableName() string { return "notifications" }

type sequenceRow struct {
	Name  string `gorm:"primaryKey"`
	Value int64
}

func (sequenceRow) TableName() string { return "sequences" }

// ============================================================
// Accounts
// ============================================================

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	return s.db.WithContext(ctx).Create(accountToRow(account)).Error
}

func (s *Store) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountID}
	}
	if err != nil {
		return nil, err
	}
	return accountFromRow(&row), nil
}

func (s *Store) GetAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var row accountRow
	err := s.db.WithContext(ctx).First(&row, "account_number = ?", accountNumber).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: accountNumber}
	}
	if err != nil {
		return nil, err
	}
	return accountFromRow(&row), nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *domain.Account) error {
	row := accountToRow(account)
	row.UpdatedAt = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&accountRow{}).Where("id = ?", account.ID).Select("*").Updates(row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "account", ID: account.ID}
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, customerID string) ([]domain.Account, error) {
	q := s.db.WithContext(ctx).Order("opened_at asc")
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	var rows []accountRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *accountFromRow(&rows[i]))
	}
	return out, nil
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) CreateTransaction(ctx context.Context, txn *domain.Transaction) error {
	return s.db.WithContext(ctx).Create(txnToRow(txn)).Error
}

func (s *Store) GetTransaction(ctx context.Context, txnID string) (*domain.Transaction, error) {
	var row transactionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", txnID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: txnID}
	}
	if err != nil {
		return nil, err
	}
	return txnFromRow(&row), nil
}

func (s *Store) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	res := s.db.WithContext(ctx).Model(&transactionRow{}).Where("id = ?", txn.ID).Select("*").Updates(txnToRow(txn))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: txn.ID}
	}
	return nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.Transaction, error) {
	q := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at desc")
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		q = q.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	var rows []transactionRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, *txnFromRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) NextTransactionNumber(ctx context.Context) (string, error) {
	n, err := s.nextSequence(ctx, "transaction")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TXN%08d", n), nil
}

// ============================================================
// Transfers
// ============================================================

func (s *Store) CreateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	return s.db.WithContext(ctx).Create(transferToRow(transfer)).Error
}

func (s *Store) GetTransfer(ctx context.Context, transferID string) (*domain.Transfer, error) {
	var row transferRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", transferID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "transfer", ID: transferID}
	}
	if err != nil {
		return nil, err
	}
	return transferFromRow(&row), nil
}

func (s *Store) UpdateTransfer(ctx context.Context, transfer *domain.Transfer) error {
	res := s.db.WithContext(ctx).Model(&transferRow{}).Where("id = ?", transfer.ID).Select("*").Updates(transferToRow(transfer))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "transfer", ID: transfer.ID}
	}
	return nil
}

func (s *Store) ListTransfersByAccount(ctx context.Context, accountID string, page, pageSize int) ([]domain.Transfer, error) {
	q := s.db.WithContext(ctx).Where("from_account_id = ?", accountID).Order("created_at desc")
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		q = q.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	var rows []transferRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Transfer, 0, len(rows))
	for i := range rows {
		out = append(out, *transferFromRow(&rows[i]))
	}
	return out, nil
}

func (s *Store) SumCompletedTransfersSince(ctx context.Context, accountID string, since time.Time, currency string) (domain.Money, error) {
	var total decimal.NullDecimal
	err := s.db.WithContext(ctx).Model(&transferRow{}).
		Select("SUM(amount)").
		Where("from_account_id = ? AND status = ? AND completed_at >= ?", accountID, string(domain.TrfCompleted), since).
		Scan(&total).Error
	if err != nil {
		return domain.Money{}, err
	}
	if !total.Valid {
		return domain.Zero(currency), nil
	}
	return domain.Money{Amount: total.Decimal, Currency: currency}, nil
}

func (s *Store) NextTransferNumber(ctx context.Context) (string, error) {
	n, err := s.nextSequence(ctx, "transfer")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TRF%08d", n), nil
}

func (s *Store) nextSequence(ctx context.Context, name string) (int64, error) {
	var value int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row sequenceRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", name).First(&row).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			row = sequenceRow{Name: name}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		row.Value++
		value = row.Value
		return tx.Save(&row).Error
	})
	return value, err
}

// ============================================================
// Audit log
// ============================================================

func (s *Store) AppendAudit(ctx context.Context, entry *domain.AuditLogEntry) error {
	return s.db.WithContext(ctx).Create(auditToRow(entry)).Error
}

func (s *Store) ListAuditByRecord(ctx context.Context, model, recordID string) ([]domain.AuditLogEntry, error) {
	var rows []auditRow
	err := s.db.WithContext(ctx).
		Where("model = ? AND record_id = ?", model, recordID).
		Order("timestamp asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return auditFromRows(rows), nil
}

func (s *Store) ListAuditByAccount(ctx context.Context, accountID string, from, to time.Time, page, pageSize int) ([]domain.AuditLogEntry, error) {
	q := s.db.WithContext(ctx).Order("timestamp desc")
	if accountID != "" {
		q = q.Where("account_id = ?", accountID)
	}
	if !from.IsZero() {
		q = q.Where("timestamp >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("timestamp <= ?", to)
	}
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		q = q.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	var rows []auditRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return auditFromRows(rows), nil
}

func (s *Store) MarkArchivedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res := s.db.WithContext(ctx).Model(&auditRow{}).
		Where("archived = false AND timestamp < ?", cutoff).
		Update("archived", true)
	return int(res.RowsAffected), res.Error
}

// ============================================================
// Notifications
// ============================================================

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	return s.db.WithContext(ctx).Create(notificationToRow(n)).Error
}

func (s *Store) UpdateNotification(ctx context.Context, n *domain.Notification) error {
	res := s.db.WithContext(ctx).Model(&notificationRow{}).Where("id = ?", n.ID).Select("*").Updates(notificationToRow(n))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &domain.ErrNotFound{Resource: "notification", ID: n.ID}
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id string) (*domain.Notification, error) {
	var row notificationRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return notificationFromRow(&row), nil
}

func (s *Store) ListNotifications(ctx context.Context, customerID string, page, pageSize int) ([]domain.Notification, error) {
	q := s.db.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at desc")
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		q = q.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	var rows []notificationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(rows))
	for i := range rows {
		out = append(out, *notificationFromRow(&rows[i]))
	}
	return out, nil
}
