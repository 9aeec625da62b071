package market

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed failure taxonomy shared by all backends.
type ErrorKind string

const (
	KindNoCredentials       ErrorKind = "no_credentials"
	KindRateLimited         ErrorKind = "rate_limited"
	KindInvalidResponse     ErrorKind = "invalid_response"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindAuthFailed          ErrorKind = "authentication_failed"
	KindNetwork             ErrorKind = "network_error"
	KindSymbolNotFound      ErrorKind = "symbol_not_found"
	KindDecoding            ErrorKind = "decoding_error"
)

// Retryable reports whether the kind is worth re-attempting against the
// same backend. The classification is static and orthogonal to identity.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindProviderUnavailable, KindNetwork:
		return true
	}
	return false
}

// Error is the one error type backends are allowed to return.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches against another *Error by kind, so
// errors.Is(err, &Error{Kind: KindRateLimited}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// NewError builds a taxonomy error with a human-readable detail.
func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// WrapError attaches an underlying cause, preserved for errors.Unwrap.
func WrapError(kind ErrorKind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// KindOf extracts the taxonomy kind from an error chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Retryable classifies an arbitrary error. Errors outside the taxonomy are
// contract violations and classified non-retryable so a misbehaving adapter
// cannot trap the retry loop.
func Retryable(err error) bool {
	if k, ok := KindOf(err); ok {
		return k.Retryable()
	}
	return false
}
