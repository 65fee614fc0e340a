// Package domain holds the core banking types: accounts, transactions,
// transfers, audit entries and notifications, with their closed status
// and type enumerations.
package domain

import "time"

// AccountType classifies an account.
type AccountType string

const (
	AccountSavings      AccountType = "savings"
	AccountCurrent      AccountType = "current"
	AccountFixedDeposit AccountType = "fixed_deposit"
	AccountLoan         AccountType = "loan"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountSavings, AccountCurrent, AccountFixedDeposit, AccountLoan:
		return true
	}
	return false
}

// AccountStatus is the account lifecycle state.
// draft → active → frozen → closed; closed is terminal.
type AccountStatus string

const (
	AccountDraft  AccountStatus = "draft"
	AccountActive AccountStatus = "active"
	AccountFrozen AccountStatus = "frozen"
	AccountClosed AccountStatus = "closed"
)

// Account holds ledger balance state for one customer account.
//
// AvailableBalance is derived (Balance - HoldAmount) and recomputed on
// every mutation via Recompute; it is never cached stale.
type Account struct {
	ID            string        `json:"id"`
	AccountNumber string        `json:"account_number"`
	Name          string        `json:"name"`
	CustomerID    string        `json:"customer_id"`
	Type          AccountType   `json:"account_type"`
	Currency      string        `json:"currency"`

	Balance          Money `json:"balance"`
	HoldAmount       Money `json:"hold_amount"`
	AvailableBalance Money `json:"available_balance"`

	Status AccountStatus `json:"status"`

	DailyWithdrawalLimit Money `json:"daily_withdrawal_limit"`
	DailyTransferLimit   Money `json:"daily_transfer_limit"`

	Branch    string     `json:"branch,omitempty"`
	OpenedAt  time.Time  `json:"opened_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Recompute refreshes the derived available balance. Call after every
// balance or hold mutation.
func (a *Account) Recompute() {
	avail, err := a.Balance.Sub(a.HoldAmount)
	if err != nil {
		// Balance and hold always share the account currency; a mismatch
		// here is a programming error.
		panic(err)
	}
	a.AvailableBalance = avail
}
