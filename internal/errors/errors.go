package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeBadRequest  Code = 3
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
)

// Error is a typed error that carries a stable error code. Reason holds the
// API-level code pair ("400.1"...) for validation and domain failures so the
// rendered body stays byte-stable across releases.
type Error struct {
	Code    Code
	Reason  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewBadRequest builds a client-caused failure with its stable reason code.
func NewBadRequest(reason, message string) *Error {
	return &Error{Code: CodeBadRequest, Reason: reason, Message: message}
}

// NewInternal wraps an unexpected upstream failure. The cause stays in the
// error chain for diagnostics and is never rendered to the client body.
func NewInternal(cause error) *Error {
	return &Error{Code: CodeInternal, Reason: "500.1", Message: "internal server error", Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Reason extracts the API reason code, defaulting to the internal one.
func Reason(err error) string {
	if typed, ok := As(err); ok && typed.Reason != "" {
		return typed.Reason
	}
	return "500.1"
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if typed, ok := As(err); ok {
		return int(typed.Code)
	}
	return int(CodeInternal)
}
