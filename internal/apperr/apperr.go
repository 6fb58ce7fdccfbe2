// Package apperr defines a closed set of error kinds, each mapped to an
// HTTP status (used by the login handler; other handlers write their
// status codes directly), mirroring the teacher's
// errorResponse/writeError pattern but with an explicit Kind instead of a
// bare status code threaded through call sites.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a coarse error classification, independent of transport.
type Kind int

const (
	Internal Kind = iota
	Unauthenticated
	Forbidden
	RateLimited
	NotFound
	BadRequest
	Conflict
)

// Error wraps a Kind with a user-facing message and an optional cause
// retained for logging only (never serialised to the client).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func new(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Unauthenticatedf(msg string) *Error        { return new(Unauthenticated, msg, nil) }
func Forbiddenf(msg string) *Error              { return new(Forbidden, msg, nil) }
func RateLimitedf(msg string) *Error            { return new(RateLimited, msg, nil) }
func NotFoundf(msg string) *Error               { return new(NotFound, msg, nil) }
func BadRequestf(msg string) *Error             { return new(BadRequest, msg, nil) }
func Conflictf(msg string) *Error               { return new(Conflict, msg, nil) }
func Internalf(msg string, cause error) *Error  { return new(Internal, msg, cause) }

// StatusFor maps a Kind to the HTTP status table in spec.md §7.
func StatusFor(k Kind) int {
	switch k {
	case Unauthenticated:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case RateLimited:
		return http.StatusTooManyRequests
	case NotFound:
		return http.StatusNotFound
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *Error from err, synthesising an Internal one if err
// isn't already classified. Unknown errors are never echoed verbatim to
// the client; the caller decides what terse message to show.
func As(err error, fallbackMessage string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internalf(fallbackMessage, err)
}
