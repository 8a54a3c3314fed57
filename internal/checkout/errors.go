package checkout

import (
	"errors"
	"strings"
)

var (
	// ErrNotEditable indicates a form edit outside the form phase.
	ErrNotEditable = errors.New("checkout: form is not editable")
	// ErrSubmitInProgress indicates a submit was attempted while one is in flight.
	ErrSubmitInProgress = errors.New("checkout: submit already in progress")
	// ErrLoginRequired indicates an anonymous submit while guest checkout is disabled.
	ErrLoginRequired = errors.New("checkout: login required")
	// ErrInvalidInput indicates required customer fields are missing.
	ErrInvalidInput = errors.New("checkout: invalid input")
	// ErrCartEmpty indicates a submit against an empty cart.
	ErrCartEmpty = errors.New("checkout: cart is empty")
	// ErrOrderFailed indicates the order could not be stored.
	ErrOrderFailed = errors.New("checkout: order failed")
)

// ValidationError lists the required customer fields that were empty.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "checkout: missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// SubmitError is a failed order write. Retryable failures leave the cart intact.
type SubmitError struct {
	Retryable bool
	Message   string
	cause     error
}

func (e *SubmitError) Error() string {
	if e.cause == nil {
		return ErrOrderFailed.Error()
	}
	return ErrOrderFailed.Error() + ": " + e.cause.Error()
}

func (e *SubmitError) Unwrap() []error {
	if e.cause == nil {
		return []error{ErrOrderFailed}
	}
	return []error{ErrOrderFailed, e.cause}
}
