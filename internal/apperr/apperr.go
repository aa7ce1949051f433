// Package apperr defines the closed error taxonomy of the warranty workflow
// engine. Every public operation returns either a typed success value or an
// *Error carrying one of the kinds below, never a generic failure.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and for HTTP status mapping.
type Kind string

const (
	// KindUnauthorized means the actor's role (or identity) does not permit
	// the requested action. Never retried.
	KindUnauthorized Kind = "UNAUTHORIZED"

	// KindInvalidTransition means a state precondition was unmet, e.g.
	// approving a claim that is no longer PENDING. Never retried.
	KindInvalidTransition Kind = "INVALID_TRANSITION"

	// KindMissingField means a required input was absent or invalid, e.g. a
	// rejection without a reason. Never retried.
	KindMissingField Kind = "MISSING_FIELD"

	// KindInsufficientStock means the part ledger cannot satisfy a consume
	// request; the ledger is left unchanged.
	KindInsufficientStock Kind = "INSUFFICIENT_STOCK"

	// KindNotFound means a referenced claim, assignment or part unit does
	// not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindBusy means a per-entity lock could not be acquired. Safe for a
	// bounded automatic retry by the caller.
	KindBusy Kind = "BUSY"

	// KindInternal wraps infrastructure failures (database, marshalling).
	KindInternal Kind = "INTERNAL"
)

// Error is the concrete error type returned by the engine.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ── Convenience constructors ─────────────────────────────────────────────────

// Unauthorized builds a role-gate denial for an action.
func Unauthorized(role, action string) *Error {
	return Newf(KindUnauthorized, "role %s is not permitted to %s", role, action)
}

// NotFound builds a missing-entity error.
func NotFound(resource, id string) *Error {
	return Newf(KindNotFound, "%s %s not found", resource, id)
}

// MissingField builds a required-input error for a named field.
func MissingField(field, message string) *Error {
	return Newf(KindMissingField, "%s: %s", field, message)
}

// InvalidTransition builds a state-precondition error.
func InvalidTransition(resource, id, detail string) *Error {
	return Newf(KindInvalidTransition, "%s %s: %s", resource, id, detail)
}

// InsufficientStock names the part model that could not be satisfied.
func InsufficientStock(partModelID string, requested, available int) *Error {
	return Newf(KindInsufficientStock,
		"part model %s: requested %d units, %d in stock", partModelID, requested, available)
}

// Busy builds a retryable lock-contention error.
func Busy(resource, id string) *Error {
	return Newf(KindBusy, "%s %s is locked by a concurrent operation, retry", resource, id)
}
