// Package apierror defines the HTTP Surface's error taxonomy: one typed
// error per status class, carried through the call stack with
// fmt.Errorf("...: %w", err) and type-switched exactly once at the
// response-writing boundary.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which HTTP status class an Error maps to.
type Kind string

const (
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindConflict             Kind = "conflict"
	KindAuth                 Kind = "auth"
	KindRateLimited          Kind = "rate_limited"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindInternal             Kind = "internal"
)

// Error is the typed error carried to the HTTP response boundary.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds; only meaningful for KindRateLimited
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status returns the HTTP status code for e.Kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Validation builds a 400 validation error.
func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

// NotFound builds a 404 error.
func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Conflict builds a 409 error.
func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

// Auth builds a 401 error.
func Auth(msg string) *Error { return &Error{Kind: KindAuth, Message: msg} }

// RateLimited builds a 429 error carrying a Retry-After hint in seconds.
func RateLimited(retryAfterSec int) *Error {
	return &Error{Kind: KindRateLimited, Message: "rate limit exceeded", RetryAfter: retryAfterSec}
}

// Unavailable builds a 503 error for a failed dependency (store, bus).
func Unavailable(msg string, cause error) *Error {
	return &Error{Kind: KindDependencyUnavailable, Message: msg, cause: cause}
}

// Internal builds a 500 error wrapping cause.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: cause}
}

// As extracts an *Error from err via errors.As, for use at the response
// boundary.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
