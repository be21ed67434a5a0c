package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and for the transport layer.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindUpstream           Kind = "upstream"
	KindNotFound           Kind = "not_found"
	KindTransactionAborted Kind = "transaction_aborted"
	KindIO                 Kind = "io"
)

// Error is the single error type returned by the orchestrators.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the Kind of err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
