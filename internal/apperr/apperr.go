// Package apperr provides the application's error taxonomy: coded errors
// that the per-unit pipeline boundary and the HTTP layer can branch on.
//
//	if apperr.Is(err, apperr.ErrNotFound) { ... }
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library helpers so callers need a single import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code classifies an error.
type Code string

const (
	CodeFetchFailed  Code = "FETCH_FAILED"  // calendar source unreachable or non-200
	CodeParseFailed  Code = "PARSE_FAILED"  // malformed calendar payload
	CodeStoreFailed  Code = "STORE_FAILED"  // booking store unreachable or write rejected
	CodeNotFound     Code = "NOT_FOUND"     // unit or booking not found
	CodeInvalidInput Code = "INVALID_INPUT" // unparseable date or bad request field
	CodeInternal     Code = "INTERNAL"
)

// HTTPStatus maps a code to the status the web layer should respond with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeFetchFailed, CodeStoreFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a coded application error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same code, so callers can compare
// against the sentinel values below without constructing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status for this error's code.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// Sentinels for errors.Is checks.
var (
	ErrFetchFailed  = &Error{Code: CodeFetchFailed, Message: "fetch failed"}
	ErrParseFailed  = &Error{Code: CodeParseFailed, Message: "parse failed"}
	ErrStoreFailed  = &Error{Code: CodeStoreFailed, Message: "store failed"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidInput = &Error{Code: CodeInvalidInput, Message: "invalid input"}
)

// FetchFailed wraps a calendar-source failure.
func FetchFailed(msg string, cause error) *Error {
	return &Error{Code: CodeFetchFailed, Message: msg, cause: cause}
}

// ParseFailed wraps a calendar payload that could not be parsed.
func ParseFailed(msg string, cause error) *Error {
	return &Error{Code: CodeParseFailed, Message: msg, cause: cause}
}

// StoreFailed wraps a booking-store failure.
func StoreFailed(msg string, cause error) *Error {
	return &Error{Code: CodeStoreFailed, Message: msg, cause: cause}
}

// NotFound reports a missing unit or booking.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports an unparseable or invalid caller-supplied value.
func InvalidInput(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure.
func Internal(msg string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: cause}
}

// CodeOf extracts the code from err, or CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
