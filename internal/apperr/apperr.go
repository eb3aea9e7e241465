// Package apperr defines the typed error kinds surfaced in *-error
// wire messages: a Code the dispatcher can recover with errors.As
// instead of switching on error identity.
package apperr

import (
	"errors"
	"fmt"
)

// Code is a stable, wire-visible error classification.
type Code string

const (
	InvalidInput Code = "InvalidInput"
	NotFound     Code = "NotFound"
	Forbidden    Code = "Forbidden"
	Conflict     Code = "Conflict"
	IllegalMove  Code = "IllegalMove"
	Expired      Code = "Expired"
	InvalidCode  Code = "InvalidCode"
	AlreadyIn    Code = "AlreadyIn"
	Unavailable  Code = "Unavailable"
	Internal     Code = "Internal"
)

// Error pairs a stable Code with a human-readable message. It wraps an
// optional underlying error for %w unwrapping.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.err }

// New constructs an *Error with no wrapped cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs an *Error carrying an underlying cause for %w chains.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, err: cause}
}

// Wrapf is Wrap with fmt-style message formatting.
func Wrapf(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), err: cause}
}

// CodeOf extracts the Code from err, defaulting to Internal for any
// error that isn't an *Error — the Dispatcher never leaks a raw Go
// error message to a client for unclassified failures.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}
