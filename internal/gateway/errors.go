package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures so callers can decide between
// retrying, rejecting, or surfacing a client error. The webhook handler is
// the only place kinds are mapped to HTTP status codes.
type ErrorKind string

const (
	ErrAuth            ErrorKind = "auth_error"
	ErrNotFound        ErrorKind = "not_found"
	ErrRateLimited     ErrorKind = "rate_limited"
	ErrTransport       ErrorKind = "transport_error"
	ErrInvalidResponse ErrorKind = "invalid_response"
	ErrInvalidProduct  ErrorKind = "invalid_product"
	ErrValidation      ErrorKind = "validation"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the ErrorKind carried by err, or ErrTransport when err is
// not a gateway error (unclassified failures are treated as retryable).
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ErrTransport
}

// IsRetryable reports whether the provider should be told to re-deliver.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrTransport, ErrRateLimited, ErrInvalidResponse:
		return true
	}
	return false
}
