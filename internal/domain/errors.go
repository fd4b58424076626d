package domain

import "fmt"

// Error types for consistent error handling across the ledger.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
// Always raised before any write.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrNoOutstandingDebt is the business-rule rejection raised when a payment
// is recorded for a client with no debt or partial transactions.
type ErrNoOutstandingDebt struct {
	ClientID string
}

func (e *ErrNoOutstandingDebt) Error() string {
	return fmt.Sprintf("client %s has no outstanding transactions", e.ClientID)
}

// ErrExternalService indicates a failure in the persistence backend or
// another collaborator.
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

// ErrLockTimeout indicates a serialization lock could not be acquired in time.
type ErrLockTimeout struct {
	Key string
}

func (e *ErrLockTimeout) Error() string {
	return fmt.Sprintf("timed out waiting for lock: %s", e.Key)
}

// ErrUnauthorized indicates invalid credentials or session.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}
