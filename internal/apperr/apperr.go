// Package apperr defines the structured error envelope shared across the
// wallet-monitoring pipeline: a recoverable flag plus an error code so the
// HTTP facade and the downstream client protocol can both surface {code,
// message, details, recoverable} without re-deriving it from a bare error.
package apperr

import "fmt"

// Code classifies an error for callers that need to decide whether to retry.
type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeChainIO     Code = "CHAIN_IO"
	CodeSubscribe   Code = "SUBSCRIPTION_FAILED"
	CodeContract    Code = "CONTRACT_REJECTED"
	CodeScoring     Code = "SCORING_FAILED"
	CodeBroadcast   Code = "BROADCAST_FAILED"
	CodeRateLimit   Code = "RATE_LIMIT_EXCEEDED"
	CodeNotFound    Code = "NOT_FOUND"
	CodeNotConfigured Code = "NOT_CONFIGURED"
	CodeInternal    Code = "INTERNAL"
)

// Error is the structured error propagated between pipeline components.
type Error struct {
	Code        Code
	Message     string
	Details     string
	Recoverable bool
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a non-recoverable error of the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a cause to a new structured error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithRecoverable sets whether the caller may retry the error after backoff.
func (e *Error) WithRecoverable(r bool) *Error {
	e.Recoverable = r
	return e
}

// WithDetails attaches free-form diagnostic detail.
func (e *Error) WithDetails(d string) *Error {
	e.Details = d
	return e
}

// Validation is a convenience constructor for the "invalid input" class of
// error — never retried, surfaced with 400-class semantics.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Transient marks a chain-I/O style error as recoverable by the caller once
// the Chain Client's own retry budget is exhausted.
func Transient(message string, cause error) *Error {
	return Wrap(CodeChainIO, message, cause).WithRecoverable(true)
}
