package auth

import (
	"errors"
	"fmt"
)

// Reason classifies an authentication failure.
type Reason string

// Authentication failure reasons.
const (
	ReasonMissing   Reason = "missing"
	ReasonInvalid   Reason = "invalid"
	ReasonExpired   Reason = "expired"
	ReasonMalformed Reason = "malformed"
)

// Sentinel errors for token extraction.
var (
	ErrNoTokenFound  = errors.New("no token found")
	ErrMissingHeader = errors.New("missing authorization header")
	ErrInvalidPrefix = errors.New("invalid authorization prefix")
	ErrMissingCookie = errors.New("missing cookie")
)

// Error is an authentication error. Every failure during credential
// extraction or token validation resolves to one of these; validation
// failures of any cause are reported under ReasonInvalid unless a more
// specific reason is known. Keeping the conflation behind this one
// type means it can be split later without changing callers.
type Error struct {
	Reason  Reason
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("auth error (%s): %s: %v", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("auth error (%s): %s", e.Reason, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new authentication error.
func NewError(reason Reason, message string, cause error) *Error {
	return &Error{Reason: reason, Message: message, Cause: cause}
}

// AsAuthError extracts an *Error from err, or wraps err as a generic
// invalid-token error.
func AsAuthError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return NewError(ReasonInvalid, "token validation failed", err)
}

// IsMissing reports whether the error indicates an absent credential.
func IsMissing(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Reason == ReasonMissing
}
