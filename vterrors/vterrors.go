// Package vterrors defines the error taxonomy shared across the matching
// engine: a small closed set of kinds, an Error type carrying the failing
// operation and an optional wrapped cause, and an Is predicate for callers
// that only care about the kind.
package vterrors

import "fmt"

// Kind is the closed set of error categories the engine reports.
type Kind string

const (
	KindIndexUnavailable Kind = "index_unavailable"
	KindIoFailed         Kind = "io_failed"
	KindDecodeFailed     Kind = "decode_failed"
	KindMatchTimeout     Kind = "match_timeout"
	KindBufferFull       Kind = "buffer_full"
	KindDuplicateAlias   Kind = "duplicate_alias"
	KindInvalidInput     Kind = "invalid_input"
)

// Error is the module's typed error (vtconfig and vtschema return plain
// fmt.Errorf errors instead). Op
// names the failing operation (package.Func), Message is a short
// human-readable description, and Cause, when non-nil, is the underlying
// error being wrapped.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

// Unwrap exposes Cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error with no wrapped cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an Error around an existing cause, using the cause's own
// error text as Message.
func Wrap(kind Kind, op string, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*Error)
	if !ok {
		return false
	}
	return ve.Kind == kind
}
