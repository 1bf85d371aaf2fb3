package order

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("order rejected")
	ErrNetwork    = errors.New("order service unreachable")
	ErrServer     = errors.New("order service error")
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindServer     Kind = "server"
)

// SubmitError is a failed order creation. Status is the HTTP status when the
// service answered and 0 otherwise.
type SubmitError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *SubmitError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s error: status %d: %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s error: status %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return string(e.Kind) + " error"
}

func (e *SubmitError) Unwrap() []error {
	var kind error
	switch e.Kind {
	case KindValidation:
		kind = ErrValidation
	case KindNetwork:
		kind = ErrNetwork
	default:
		kind = ErrServer
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// classify maps an HTTP status outside 2xx to an error kind.
func classify(status int) Kind {
	if status >= 400 && status < 500 {
		return KindValidation
	}
	return KindServer
}
