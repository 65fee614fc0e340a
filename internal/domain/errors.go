package domain

import "fmt"

// Error types for consistent error handling across the engine.

// ErrNotFound indicates a record was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates malformed input, rejected before any mutation.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInsufficientFunds indicates a debit exceeding the available balance.
// Rejected at the ledger boundary; no partial effect.
type ErrInsufficientFunds struct {
	AccountID string
	Available Money
	Required  Money
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available=%s required=%s",
		e.AccountID, e.Available, e.Required)
}

// ErrInvalidState indicates an operation attempted against a record whose
// current state forbids it (e.g. cancel after complete).
type ErrInvalidState struct {
	Entity string
	ID     string
	Status string
	Action string
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status '%s'", e.Action, e.Entity, e.ID, e.Status)
}

// ErrDailyLimitExceeded indicates a same-day ceiling would be breached.
type ErrDailyLimitExceeded struct {
	AccountID string
	Limit     Money
	Attempted Money
}

func (e *ErrDailyLimitExceeded) Error() string {
	return fmt.Sprintf("daily limit exceeded on account %s: limit=%s attempted=%s",
		e.AccountID, e.Limit, e.Attempted)
}

// ErrInconsistentTransfer reports a completed debit leg whose paired credit
// leg did not complete. The orchestrator compensates the debit leg before
// surfacing this error.
type ErrInconsistentTransfer struct {
	TransferID string
	DebitTxnID string
	Reason     string
}

func (e *ErrInconsistentTransfer) Error() string {
	return fmt.Sprintf("inconsistent transfer %s (debit leg %s completed): %s",
		e.TransferID, e.DebitTxnID, e.Reason)
}

// ErrExternalService indicates a failure in an external collaborator call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates the actor lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}
