package domain

// Request payloads accepted by the REST surface. Amounts arrive as
// decimal strings and are converted to Money at the handler boundary.

// OpenAccountRequest opens a new account in draft status.
type OpenAccountRequest struct {
	CustomerID string      `json:"customer_id"`
	Name       string      `json:"name"`
	Type       AccountType `json:"account_type"`
	Currency   string      `json:"currency"`
	Branch     string      `json:"branch,omitempty"`
}

// PostTransactionRequest posts a single transaction against an account.
type PostTransactionRequest struct {
	AccountID   string          `json:"account_id"`
	Type        TransactionType `json:"type"`
	Amount      string          `json:"amount"`
	Description string          `json:"description,omitempty"`
	Reference   string          `json:"reference,omitempty"`
	LoanID      string          `json:"loan_id,omitempty"`

	// TransferID is set by the transfer orchestrator when posting legs;
	// it is not accepted from the REST surface.
	TransferID string `json:"-"`
}

// CreateTransferRequest creates a transfer in draft status.
// Exactly one of ToAccountID (internal) or Beneficiary (external rails)
// must be populated.
type CreateTransferRequest struct {
	Type          TransferType `json:"type"`
	FromAccountID string       `json:"from_account_id"`
	ToAccountID   string       `json:"to_account_id,omitempty"`
	Beneficiary   *Beneficiary `json:"beneficiary,omitempty"`
	Amount        string       `json:"amount"`
	Description   string       `json:"description,omitempty"`
	Reference     string       `json:"reference,omitempty"`
}

// HoldRequest places or releases earmarked funds on an account.
type HoldRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason,omitempty"`
}
