package checkout

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation")
	ErrState      = errors.New("invalid session state")
	ErrNotFound   = errors.New("checkout session not found")

	ErrEmptyCart = fmt.Errorf("cart is empty: %w", ErrValidation)
)

// ValidationError names the offending field of a rejected address or payment.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// StateError reports an operation attempted from a state that does not allow it.
type StateError struct {
	From State
	Op   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.From)
}

func (e *StateError) Unwrap() error {
	return ErrState
}
