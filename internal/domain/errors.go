package domain

import "fmt"

// Error types for consistent error handling across the service.
// Data-quality problems inside a balance run are BalanceWarning values, not errors.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
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

// ErrRateUnavailable indicates the live rate provider could not serve a snapshot.
// It never leaves the rates package: the acquirer falls back instead.
type ErrRateUnavailable struct {
	Base   string
	Reason string
	Err    error
}

func (e *ErrRateUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rates unavailable for %s: %s: %v", e.Base, e.Reason, e.Err)
	}
	return fmt.Sprintf("rates unavailable for %s: %s", e.Base, e.Reason)
}

func (e *ErrRateUnavailable) Unwrap() error {
	return e.Err
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the caller lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
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
