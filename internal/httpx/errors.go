// Package httpx holds the HTTP error taxonomy and JSON response
// helpers shared by all API routers.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an HTTP-mapped error carrying a status code, a stable
// machine-readable key, and a human-readable message.
type Error struct {
	Code    int    `json:"-"`
	Key     string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (e Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

// The error taxonomy used across the API surface.
var (
	ErrUnauthenticated = Error{Code: http.StatusUnauthorized, Key: "unauthenticated", Message: "invalid or expired token"}
	ErrForbidden       = Error{Code: http.StatusForbidden, Key: "forbidden"}
	ErrNotFound        = Error{Code: http.StatusNotFound, Key: "not_found"}
	ErrBadRequest      = Error{Code: http.StatusBadRequest, Key: "bad_request"}
	ErrUpstream        = Error{Code: http.StatusInternalServerError, Key: "upstream_failure"}
	ErrMisconfigured   = Error{Code: http.StatusInternalServerError, Key: "misconfigured"}
	ErrInternal        = Error{Code: http.StatusInternalServerError, Key: "internal_error"}
)

// WithMessage returns a copy of the error with a request-specific
// message.
func (e Error) WithMessage(format string, args ...any) Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// Upstream wraps a provider failure with enough context to diagnose it:
// the provider's name and its own error text, truncated so oversized
// provider responses do not balloon logs or responses.
func Upstream(provider string, detail string) Error {
	const maxDetail = 200
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	return ErrUpstream.WithMessage("%s: %s", provider, detail)
}

// From maps any error to a taxonomy Error, defaulting to internal.
func From(err error) Error {
	var httpErr Error
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return ErrInternal.WithMessage("%s", err.Error())
}
