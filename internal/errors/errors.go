// Package errors provides the structured error taxonomy shared by every
// refchain store backend. All errors carry a code so callers can branch on
// the failure class without string matching.
package errors

import (
	"errors"
	"fmt"
)

// Code classifies a store error.
type Code string

const (
	// CodeInvalidArgument indicates malformed input: a bad hash string, an
	// empty aggregate id on a mutating call, a duplicate event id. Surfaced
	// before any mutation is attempted.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeConcurrencyConflict indicates an expected-version mismatch on a
	// swap or commit. The caller lost a race and must re-read before
	// retrying; the store never retries on its own.
	CodeConcurrencyConflict Code = "CONCURRENCY_CONFLICT"
)

// Error is the structured error type used throughout refchain.
type Error struct {
	Code        Code
	Op          string // operation that failed, e.g. "refs.swap"
	AggregateID string
	Message     string
	Cause       error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.AggregateID != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s: %s (aggregate=%s): %v", e.Code, e.Op, e.Message, e.AggregateID, e.Cause)
	case e.AggregateID != "":
		return fmt.Sprintf("%s: %s: %s (aggregate=%s)", e.Code, e.Op, e.Message, e.AggregateID)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Op, e.Message, e.Cause)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Op, e.Message)
	}
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewInvalidArgument creates an INVALID_ARGUMENT error.
func NewInvalidArgument(op, message string) *Error {
	return &Error{Code: CodeInvalidArgument, Op: op, Message: message}
}

// NewConflict creates a CONCURRENCY_CONFLICT error for an aggregate.
func NewConflict(op, aggregateID, message string) *Error {
	return &Error{Code: CodeConcurrencyConflict, Op: op, AggregateID: aggregateID, Message: message}
}

// Wrap attaches a code and operation to an existing error.
func Wrap(code Code, op, message string, cause error) *Error {
	return &Error{Code: code, Op: op, Message: message, Cause: cause}
}

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT error.
// Uses errors.As to handle wrapped errors.
func IsInvalidArgument(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeInvalidArgument
	}
	return false
}

// IsConflict reports whether err is a CONCURRENCY_CONFLICT error.
// Uses errors.As to handle wrapped errors.
func IsConflict(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == CodeConcurrencyConflict
	}
	return false
}
