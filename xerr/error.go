// Package xerr defines the typed error taxonomy shared by every
// component of the crypto core, so callers can branch on Kind rather
// than matching error strings.
package xerr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error taxonomy described by the core's error
// handling design. Every public operation returns either success or
// an *Error carrying one of these kinds.
type Kind string

const (
	KindInvalidInput           Kind = "invalid_input"
	KindMalformedCiphertext    Kind = "malformed_ciphertext"
	KindMalformedVault         Kind = "malformed_vault"
	KindUnsupportedVersion     Kind = "unsupported_version"
	KindDecryptFailed          Kind = "decrypt_failed"
	KindVaultLocked            Kind = "vault_locked"
	KindNoVault                Kind = "no_vault"
	KindNotFound               Kind = "not_found"
	KindDuplicateName          Kind = "duplicate_name"
	KindAlreadyExists          Kind = "already_exists"
	KindPersistenceFull        Kind = "persistence_full"
	KindPersistenceUnavailable Kind = "persistence_unavailable"
	KindCancelled              Kind = "cancelled"
	KindBusy                   Kind = "busy"
)

// Error wraps a Kind and a message. It never carries secret material;
// callers constructing one must pass only structural detail.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New creates an *Error of the given kind with a formatted message.
func New(kind Kind, format string, a ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, a...)}
}

// Wrap creates an *Error of the given kind that wraps an underlying
// error for errors.Unwrap/errors.Is chaining. The underlying error's
// text is included in Error() but callers should ensure it never
// contains secret material.
func Wrap(kind Kind, err error, format string, a ...interface{}) *Error {
	if err == nil {
		return New(kind, format, a...)
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, a...), err: err}
}

// Kind returns the error's taxonomy kind.
func (e *Error) Kind() Kind {
	if e == nil {
		return ""
	}
	return e.kind
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

// Unwrap exposes the wrapped error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Is reports whether target is an *Error with the same Kind, enabling
// errors.Is(err, xerr.New(xerr.KindNotFound, "")) style comparisons as
// well as direct Kind sentinels via Sentinel below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.kind == other.kind
	}
	return false
}

// Sentinel returns a zero-message *Error of the given kind, suitable
// for use with errors.Is to check a returned error's kind:
//
//	if errors.Is(err, xerr.Sentinel(xerr.KindNotFound)) { ... }
func Sentinel(kind Kind) *Error {
	return &Error{kind: kind}
}

// Of returns the Kind of err if err is (or wraps) an *Error, and ok=false
// otherwise.
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := Of(err)
	return ok && k == kind
}
