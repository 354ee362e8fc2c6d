package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures by what the caller should do about them
type ErrorKind string

const (
	// KindNoCredentials - no cookies were ever uploaded, the caller must onboard
	KindNoCredentials ErrorKind = "no_credentials"

	// KindSessionExpired - a navigation landed on the sign-in page, the caller must re-authenticate
	KindSessionExpired ErrorKind = "session_expired"

	// KindNotFound - the operation worked but the target has nothing to return
	KindNotFound ErrorKind = "not_found"

	// KindTransient - network, timeout or navigation failure; safe to retry
	KindTransient ErrorKind = "transient"

	// KindMalformedInput - bad URL or cookie payload; never retried
	KindMalformedInput ErrorKind = "malformed_input"
)

// ServiceError carries a kind alongside the message and cause
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is matches any ServiceError of the same kind, so errors.Is(err, ErrSessionExpired) works
// regardless of message.
func (e *ServiceError) Is(target error) bool {
	var t *ServiceError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNoCredentials  = &ServiceError{Kind: KindNoCredentials, Message: "no cookies uploaded"}
	ErrSessionExpired = &ServiceError{Kind: KindSessionExpired, Message: "session expired, re-authentication required"}
	ErrNotFound       = &ServiceError{Kind: KindNotFound, Message: "not found"}
	ErrTransient      = &ServiceError{Kind: KindTransient, Message: "temporary failure"}
	ErrMalformedInput = &ServiceError{Kind: KindMalformedInput, Message: "malformed input"}
)

// NewError builds a ServiceError of the given kind
func NewError(kind ErrorKind, message string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first ServiceError in the chain.
// Unclassified errors are treated as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindTransient
}

// HTTPStatus maps a kind to the status code used by the HTTP surface
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindMalformedInput:
		return http.StatusBadRequest
	case KindNoCredentials, KindSessionExpired:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NeedsAuth reports whether the caller should prompt the user to re-authenticate
func (k ErrorKind) NeedsAuth() bool {
	return k == KindNoCredentials || k == KindSessionExpired
}
