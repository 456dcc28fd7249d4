// Package apperr defines the error taxonomy shared by every layer of the
// service. Each error carries the HTTP status class it maps to; the HTTP
// boundary translates anything else into a generic dependency failure so
// internal detail never leaks to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure.
type Kind int

const (
	// KindValidation covers malformed or missing input.
	KindValidation Kind = iota
	// KindAuthentication covers missing, invalid, or expired credentials.
	KindAuthentication
	// KindAuthorization covers role checks that fail for an authenticated caller.
	KindAuthorization
	// KindNotFound covers absent identities and resources.
	KindNotFound
	// KindConflict covers duplicate unique fields.
	KindConflict
	// KindDependency covers unreachable or misbehaving backing services.
	KindDependency
)

// Error is a typed domain error with an HTTP status and client-safe message.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Validation returns a 400 validation error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg}
}

// Unauthenticated returns a 401 for requests with no usable credential.
func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindAuthentication, Status: http.StatusUnauthorized, Message: msg}
}

// InvalidToken returns a 400 for credentials that are present but unusable.
// A bad token is a malformed request, not a missing login, so it is not 401.
func InvalidToken(msg string) *Error {
	return &Error{Kind: KindAuthentication, Status: http.StatusBadRequest, Message: msg}
}

// Forbidden returns a 403 authorization error.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindAuthorization, Status: http.StatusForbidden, Message: msg}
}

// NotFound returns a 404.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Message: msg}
}

// Conflict returns a 400 for duplicate unique fields.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Status: http.StatusBadRequest, Message: msg}
}

// Dependency returns a 500 wrapping the underlying cause. The message shown
// to clients is generic; err is retained for logs only.
func Dependency(err error) *Error {
	return &Error{Kind: KindDependency, Status: http.StatusInternalServerError, Message: "internal server error", Err: err}
}
