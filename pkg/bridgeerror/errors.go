// Package bridgeerror defines the typed errors the bridge returns to
// clients, mirroring the Anthropic error envelope's error.type taxonomy
// so a translated failure looks indistinguishable from one the real
// Anthropic API would have returned.
package bridgeerror

import (
	"errors"
	"fmt"
	"net/http"
)

// Type is one of the Anthropic API's error.type values.
type Type string

const (
	TypeInvalidRequest     Type = "invalid_request_error"
	TypeAuthentication     Type = "authentication_error"
	TypePermission         Type = "permission_error"
	TypeNotFound           Type = "not_found_error"
	TypeRequestTooLarge    Type = "request_too_large"
	TypeRateLimit          Type = "rate_limit_error"
	TypeAPIError           Type = "api_error"
	TypeOverloaded         Type = "overloaded_error"
	TypeUpstreamConnection Type = "api_error" // upstream network/5xx failures surface as api_error to the client
)

// Error is the bridge's typed error. It carries both the Anthropic-facing
// error.type/message and the HTTP status the handler should respond with.
type Error struct {
	Type       Type
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error with an explicit HTTP status.
func New(t Type, status int, message string) *Error {
	return &Error{Type: t, Message: message, HTTPStatus: status}
}

// Wrap constructs an Error carrying cause as its Unwrap target.
func Wrap(t Type, status int, message string, cause error) *Error {
	return &Error{Type: t, Message: message, HTTPStatus: status, Cause: cause}
}

// InvalidRequest builds a 400 invalid_request_error.
func InvalidRequest(format string, args ...any) *Error {
	return New(TypeInvalidRequest, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Authentication builds a 401 authentication_error.
func Authentication(message string) *Error {
	return New(TypeAuthentication, http.StatusUnauthorized, message)
}

// NotFound builds a 404 not_found_error.
func NotFound(format string, args ...any) *Error {
	return New(TypeNotFound, http.StatusNotFound, fmt.Sprintf(format, args...))
}

// RequestTooLarge builds a 413 request_too_large error.
func RequestTooLarge(message string) *Error {
	return New(TypeRequestTooLarge, http.StatusRequestEntityTooLarge, message)
}

// RateLimit builds a 429 rate_limit_error.
func RateLimit(message string) *Error {
	return New(TypeRateLimit, http.StatusTooManyRequests, message)
}

// Upstream wraps a failure from the upstream call as a 502 api_error,
// preserving cause for logging without leaking upstream internals to the
// client (the Message is deliberately generic; Cause carries detail for
// server-side logs only).
func Upstream(cause error) *Error {
	return Wrap(TypeAPIError, http.StatusBadGateway, "error communicating with the upstream model provider", cause)
}

// Overloaded builds a 529 overloaded_error, matching Anthropic's
// non-standard status for "try again later".
func Overloaded(message string) *Error {
	return New(TypeOverloaded, 529, message)
}

// Internal builds a 500 api_error.
func Internal(cause error) *Error {
	return Wrap(TypeAPIError, http.StatusInternalServerError, "internal error", cause)
}

// As reports whether err (or something it wraps) is a *Error, returning it.
func As(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
