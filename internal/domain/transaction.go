package domain

import "time"

// TransactionType is the closed set of ledger transaction kinds.
type TransactionType string

const (
	TxDeposit          TransactionType = "deposit"
	TxWithdrawal       TransactionType = "withdrawal"
	TxTransferIn       TransactionType = "transfer_in"
	TxTransferOut      TransactionType = "transfer_out"
	TxInterest         TransactionType = "interest"
	TxFee              TransactionType = "fee"
	TxLoanDisbursement TransactionType = "loan_disbursement"
	TxLoanRepayment    TransactionType = "loan_repayment"
)

// Direction is the ledger effect of a transaction type.
type Direction int

const (
	DirCredit Direction = iota + 1
	DirDebit
)

// directionTable maps every transaction type to its ledger direction.
// The zero value from a lookup means the type is unknown.
var directionTable = map[TransactionType]Direction{
	TxDeposit:          DirCredit,
	TxTransferIn:       DirCredit,
	TxInterest:         DirCredit,
	TxLoanDisbursement: DirCredit,
	TxWithdrawal:       DirDebit,
	TxTransferOut:      DirDebit,
	TxFee:              DirDebit,
	TxLoanRepayment:    DirDebit,
}

// Direction returns the credit/debit direction for t.
func (t TransactionType) Direction() (Direction, error) {
	d, ok := directionTable[t]
	if !ok {
		return 0, &ErrValidation{Field: "transaction_type", Message: "unknown type: " + string(t)}
	}
	return d, nil
}

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	_, ok := directionTable[t]
	return ok
}

// reversalTable maps each type to the type of its compensating
// transaction. The net ledger effect of original + reversal is zero.
var reversalTable = map[TransactionType]TransactionType{
	TxDeposit:          TxWithdrawal,
	TxWithdrawal:       TxDeposit,
	TxTransferIn:       TxTransferOut,
	TxTransferOut:      TxTransferIn,
	TxInterest:         TxFee,
	TxFee:              TxDeposit,
	TxLoanDisbursement: TxLoanRepayment,
	TxLoanRepayment:    TxLoanDisbursement,
}

// ReversalType returns the inverse transaction type used by Reverse.
func (t TransactionType) ReversalType() (TransactionType, error) {
	r, ok := reversalTable[t]
	if !ok {
		return "", &ErrValidation{Field: "transaction_type", Message: "unknown type: " + string(t)}
	}
	return r, nil
}

// TransactionStatus is the transaction lifecycle state.
// draft → pending → completed | failed | cancelled.
// completed is terminal and immutable.
type TransactionStatus string

const (
	TxnDraft     TransactionStatus = "draft"
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
	TxnCancelled TransactionStatus = "cancelled"
)

// Transaction is an immutable record of one ledger mutation. It is the
// only path by which an account balance changes.
type Transaction struct {
	ID                string            `json:"id"`
	TransactionNumber string            `json:"transaction_number"`
	AccountID         string            `json:"account_id"`
	Type              TransactionType   `json:"type"`
	Amount            Money             `json:"amount"`
	BalanceBefore     Money             `json:"balance_before"`
	BalanceAfter      Money             `json:"balance_after"`
	Status            TransactionStatus `json:"status"`

	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`

	// Optional links to the orchestration or loan that spawned this
	// transaction. The transaction's lifecycle stays independent.
	TransferID string `json:"transfer_id,omitempty"`
	LoanID     string `json:"loan_id,omitempty"`

	// ReversalOf references the original transaction when this record
	// was created by Reverse.
	ReversalOf string `json:"reversal_of,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the transaction can no longer change state.
func (t *Transaction) Terminal() bool {
	switch t.Status {
	case TxnCompleted, TxnFailed, TxnCancelled:
		return true
	}
	return false
}
