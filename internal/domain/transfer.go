package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferType selects the rail a transfer moves over.
type TransferType string

const (
	TransferInternal TransferType = "internal"
	TransferExternal TransferType = "external"
	TransferRTGS     TransferType = "rtgs"
	TransferNEFT     TransferType = "neft"
	TransferIMPS     TransferType = "imps"
)

// Valid reports whether t is a known transfer type.
func (t TransferType) Valid() bool {
	switch t {
	case TransferInternal, TransferExternal, TransferRTGS, TransferNEFT, TransferIMPS:
		return true
	}
	return false
}

// Internal reports whether the transfer credits another account in this
// ledger rather than an external rail.
func (t TransferType) Internal() bool { return t == TransferInternal }

// rtgsNeftTierThreshold is the amount at which the RTGS/NEFT fee steps up.
var rtgsNeftTierThreshold = decimal.NewFromInt(200000)

// Fee returns the transfer fee for the given amount:
// internal 0; rtgs/neft 25 below 200000, 50 at or above; imps 5; external 10.
func (t TransferType) Fee(amount Money) Money {
	switch t {
	case TransferInternal:
		return Zero(amount.Currency)
	case TransferRTGS, TransferNEFT:
		if amount.Amount.Cmp(rtgsNeftTierThreshold) < 0 {
			return Money{Amount: decimal.NewFromInt(25), Currency: amount.Currency}
		}
		return Money{Amount: decimal.NewFromInt(50), Currency: amount.Currency}
	case TransferIMPS:
		return Money{Amount: decimal.NewFromInt(5), Currency: amount.Currency}
	default:
		return Money{Amount: decimal.NewFromInt(10), Currency: amount.Currency}
	}
}

// TransferStatus is the orchestration state.
// draft → pending → approved → processing → completed | failed;
// draft|pending → cancelled. completed and cancelled are terminal;
// failed is terminal for the record but needs operator follow-up.
type TransferStatus string

const (
	TrfDraft      TransferStatus = "draft"
	TrfPending    TransferStatus = "pending"
	TrfApproved   TransferStatus = "approved"
	TrfProcessing TransferStatus = "processing"
	TrfCompleted  TransferStatus = "completed"
	TrfFailed     TransferStatus = "failed"
	TrfCancelled  TransferStatus = "cancelled"
)

// Beneficiary holds external destination details for non-internal
// transfers.
type Beneficiary struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
	Bank          string `json:"bank"`
	IFSC          string `json:"ifsc,omitempty"`
}

// Transfer is a two-phase movement of funds out of a source account,
// either into another account in this ledger (internal) or onto an
// external rail. Exactly one destination form is populated.
type Transfer struct {
	ID             string         `json:"id"`
	TransferNumber string         `json:"transfer_number"`
	Type           TransferType   `json:"type"`
	FromAccountID  string         `json:"from_account_id"`
	ToAccountID    string         `json:"to_account_id,omitempty"`
	Beneficiary    *Beneficiary   `json:"beneficiary,omitempty"`
	Amount         Money          `json:"amount"`
	Fee            Money          `json:"fee"`
	TotalAmount    Money          `json:"total_amount"`
	Status         TransferStatus `json:"status"`

	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`

	ApprovedBy      string     `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	// Legs spawned by Process. The transfer references them but does
	// not own their lifecycle.
	DebitTransactionID  string `json:"debit_transaction_id,omitempty"`
	CreditTransactionID string `json:"credit_transaction_id,omitempty"`

	// External rail bookkeeping for non-internal transfers.
	GatewayReference string `json:"gateway_reference,omitempty"`
	GatewayStatus    string `json:"gateway_status,omitempty"`

	FailureReason string     `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Cancellable reports whether the transfer may still be rejected or
// cancelled (only before processing begins).
func (t *Transfer) Cancellable() bool {
	return t.Status == TrfDraft || t.Status == TrfPending
}
