package postgres

import (
	"github.com/altbank/corebank/internal/domain"
)

// Row <-> domain conversions. Money splits into a numeric column plus
// the account/transfer currency column.

func accountToRow(a *domain.Account) *accountRow {
	return &accountRow{
		ID:                   a.ID,
		AccountNumber:        a.AccountNumber,
		Name:                 a.Name,
		CustomerID:           a.CustomerID,
		Type:                 string(a.Type),
		Currency:             a.Currency,
		Balance:              a.Balance.Amount,
		HoldAmount:           a.HoldAmount.Amount,
		Status:               string(a.Status),
		DailyWithdrawalLimit: a.DailyWithdrawalLimit.Amount,
		DailyTransferLimit:   a.DailyTransferLimit.Amount,
		Branch:               a.Branch,
		OpenedAt:             a.OpenedAt,
		ClosedAt:             a.ClosedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

func accountFromRow(r *accountRow) *domain.Account {
	a := &domain.Account{
		ID:                   r.ID,
		AccountNumber:        r.AccountNumber,
		Name:                 r.Name,
		CustomerID:           r.CustomerID,
		Type:                 domain.AccountType(r.Type),
		Currency:             r.Currency,
		Balance:              domain.Money{Amount: r.Balance, Currency: r.Currency},
		HoldAmount:           domain.Money{Amount: r.HoldAmount, Currency: r.Currency},
		Status:               domain.AccountStatus(r.Status),
		DailyWithdrawalLimit: domain.Money{Amount: r.DailyWithdrawalLimit, Currency: r.Currency},
		DailyTransferLimit:   domain.Money{Amount: r.DailyTransferLimit, Currency: r.Currency},
		Branch:               r.Branch,
		OpenedAt:             r.OpenedAt,
		ClosedAt:             r.ClosedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	a.Recompute()
	return a
}

func txnToRow(t *domain.Transaction) *transactionRow {
	return &transactionRow{
		ID:                t.ID,
		TransactionNumber: t.TransactionNumber,
		AccountID:         t.AccountID,
		Type:              string(t.Type),
		Amount:            t.Amount.Amount,
		Currency:          t.Amount.Currency,
		BalanceBefore:     t.BalanceBefore.Amount,
		BalanceAfter:      t.BalanceAfter.Amount,
		Status:            string(t.Status),
		Description:       t.Description,
		Reference:         t.Reference,
		TransferID:        t.TransferID,
		LoanID:            t.LoanID,
		ReversalOf:        t.ReversalOf,
		CreatedAt:         t.CreatedAt,
		CompletedAt:       t.CompletedAt,
	}
}

func txnFromRow(r *transactionRow) *domain.Transaction {
	return &domain.Transaction{
		ID:                r.ID,
		TransactionNumber: r.TransactionNumber,
		AccountID:         r.AccountID,
		Type:              domain.TransactionType(r.Type),
		Amount:            domain.Money{Amount: r.Amount, Currency: r.Currency},
		BalanceBefore:     domain.Money{Amount: r.BalanceBefore, Currency: r.Currency},
		BalanceAfter:      domain.Money{Amount: r.BalanceAfter, Currency: r.Currency},
		Status:            domain.TransactionStatus(r.Status),
		Description:       r.Description,
		Reference:         r.Reference,
		TransferID:        r.TransferID,
		LoanID:            r.LoanID,
		ReversalOf:        r.ReversalOf,
		CreatedAt:         r.CreatedAt,
		CompletedAt:       r.CompletedAt,
	}
}

func transferToRow(t *domain.Transfer) *transferRow {
	row := &transferRow{
		ID:                  t.ID,
		TransferNumber:      t.TransferNumber,
		Type:                string(t.Type),
		FromAccountID:       t.FromAccountID,
		ToAccountID:         t.ToAccountID,
		Amount:              t.Amount.Amount,
		Fee:                 t.Fee.Amount,
		Currency:            t.Amount.Currency,
		Status:              string(t.Status),
		Description:         t.Description,
		Reference:           t.Reference,
		ApprovedBy:          t.ApprovedBy,
		ApprovedAt:          t.ApprovedAt,
		RejectionReason:     t.RejectionReason,
		DebitTransactionID:  t.DebitTransactionID,
		CreditTransactionID: t.CreditTransactionID,
		GatewayReference:    t.GatewayReference,
		GatewayStatus:       t.GatewayStatus,
		FailureReason:       t.FailureReason,
		CreatedAt:           t.CreatedAt,
		CompletedAt:         t.CompletedAt,
	}
	if t.Beneficiary != nil {
		row.BeneficiaryName = t.Beneficiary.Name
		row.BeneficiaryAccount = t.Beneficiary.AccountNumber
		row.BeneficiaryBank = t.Beneficiary.Bank
		row.BeneficiaryIFSC = t.Beneficiary.IFSC
	}
	return row
}

func transferFromRow(r *transferRow) *domain.Transfer {
	t := &domain.Transfer{
		ID:                  r.ID,
		TransferNumber:      r.TransferNumber,
		Type:                domain.TransferType(r.Type),
		FromAccountID:       r.FromAccountID,
		ToAccountID:         r.ToAccountID,
		Amount:              domain.Money{Amount: r.Amount, Currency: r.Currency},
		Fee:                 domain.Money{Amount: r.Fee, Currency: r.Currency},
		Status:              domain.TransferStatus(r.Status),
		Description:         r.Description,
		Reference:           r.Reference,
		ApprovedBy:          r.ApprovedBy,
		ApprovedAt:          r.ApprovedAt,
		RejectionReason:     r.RejectionReason,
		DebitTransactionID:  r.DebitTransactionID,
		CreditTransactionID: r.CreditTransactionID,
		GatewayReference:    r.GatewayReference,
		GatewayStatus:       r.GatewayStatus,
		FailureReason:       r.FailureReason,
		CreatedAt:           r.CreatedAt,
		CompletedAt:         r.CompletedAt,
	}
	t.TotalAmount = domain.Money{Amount: r.Amount.Add(r.Fee), Currency: r.Currency}
	if r.BeneficiaryName != "" || r.BeneficiaryAccount != "" {
		t.Beneficiary = &domain.Beneficiary{
			Name:          r.BeneficiaryName,
			AccountNumber: r.BeneficiaryAccount,
			Bank:          r.BeneficiaryBank,
			IFSC:          r.BeneficiaryIFSC,
		}
	}
	return t
}

func auditToRow(e *domain.AuditLogEntry) *auditRow {
	return &auditRow{
		ID:          e.ID,
		Action:      string(e.Action),
		Model:       e.Model,
		RecordID:    e.RecordID,
		AccountID:   e.AccountID,
		Description: e.Description,
		Actor:       e.Actor,
		Severity:    string(e.Severity),
		OldValues:   e.OldValues,
		NewValues:   e.NewValues,
		Timestamp:   e.Timestamp,
		Archived:    e.Archived,
	}
}

func auditFromRows(rows []auditRow) []domain.AuditLogEntry {
	out := make([]domain.AuditLogEntry, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		out = append(out, domain.AuditLogEntry{
			ID:          r.ID,
			Action:      domain.AuditAction(r.Action),
			Model:       r.Model,
			RecordID:    r.RecordID,
			AccountID:   r.AccountID,
			Description: r.Description,
			Actor:       r.Actor,
			Severity:    domain.AuditSeverity(r.Severity),
			OldValues:   r.OldValues,
			NewValues:   r.NewValues,
			Timestamp:   r.Timestamp,
			Archived:    r.Archived,
		})
	}
	return out
}

func notificationToRow(n *domain.Notification) *notificationRow {
	return &notificationRow{
		ID:               n.ID,
		CustomerID:       n.CustomerID,
		Channel:          string(n.Channel),
		Subject:          n.Subject,
		Message:          n.Message,
		Priority:         string(n.Priority),
		Status:           string(n.Status),
		RetryCount:       n.RetryCount,
		ErrorMessage:     n.ErrorMessage,
		GatewayReference: n.GatewayReference,
		SentAt:           n.SentAt,
		CreatedAt:        n.CreatedAt,
	}
}

func notificationFromRow(r *notificationRow) *domain.Notification {
	return &domain.Notification{
		ID:               r.ID,
		CustomerID:       r.CustomerID,
		Channel:          domain.NotificationChannel(r.Channel),
		Subject:          r.Subject,
		Message:          r.Message,
		Priority:         domain.NotificationPriority(r.Priority),
		Status:           domain.NotificationStatus(r.Status),
		RetryCount:       r.RetryCount,
		ErrorMessage:     r.ErrorMessage,
		GatewayReference: r.GatewayReference,
		SentAt:           r.SentAt,
		CreatedAt:        r.CreatedAt,
	}
}
