// Package apierrors defines the caller-visible error taxonomy of the identity
// core. Every failure raised by the resolver, the grant engine, the security
// guard or the rate limiter is an *Error carrying a stable machine-readable
// code, so transports can map failures without string matching.
package apierrors

import (
	"errors"
	"fmt"
	"time"
)

// Code identifies a failure class. Codes are part of the wire contract and
// must stay stable.
type Code string

const (
	CodeAuthRequired            Code = "auth_required"
	CodeInvalidToken            Code = "invalid_token"
	CodeExpiredToken            Code = "expired_token"
	CodeInsufficientPermissions Code = "insufficient_permissions"
	CodeInvalidCredentials      Code = "invalid_credentials"
	CodeUserDeactivated         Code = "user_deactivated"
	CodeClientNotFound          Code = "client_not_found"
	CodeRedirectURIMismatch     Code = "redirect_uri_mismatch"
	CodeClientIDMismatch        Code = "client_id_mismatch"
	CodeClientSecretMismatch    Code = "client_secret_mismatch"
	CodeRateLimited             Code = "rate_limited"
	CodeNotImplemented          Code = "not_implemented"
	CodeInvalidRequest          Code = "invalid_request"
	CodeAlreadyExists           Code = "already_exists"
)

// Error is a typed, caller-visible failure.
type Error struct {
	Code    Code
	Message string

	// MissingScope enumerates the permissions a credential lacked. Set only
	// for CodeInsufficientPermissions so clients can show exactly what to
	// re-request.
	MissingScope []string

	// RetryAfter is the remaining window of a denied rate-limit counter.
	// Set only for CodeRateLimited.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// InsufficientPermissions constructs the missing-permission failure with the
// full list of absent capabilities.
func InsufficientPermissions(missing []string) *Error {
	return &Error{
		Code:         CodeInsufficientPermissions,
		Message:      fmt.Sprintf("insufficient permissions (required: %v)", missing),
		MissingScope: missing,
	}
}

// RateLimited constructs the admission-denied failure with a retry hint.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "too many requests",
		RetryAfter: retryAfter,
	}
}

// IsCode reports whether err (or anything it wraps) is an *Error with the
// given code.
func IsCode(err error, code Code) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// From extracts the *Error from err's chain, or nil.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
