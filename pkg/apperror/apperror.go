package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so the HTTP boundary can map it
// deterministically.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindCacheFault       Kind = "cache_fault"
	KindInternal         Kind = "internal"
)

// Error is the structured error carried by every engine operation.
// Field names the offending input (a filter id, a column name) when
// one exists.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Validation returns a validation error for the given field.
func Validation(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied returns a permission error.
func PermissionDenied(format string, args ...interface{}) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// NotFound returns a not-found error. Cross-tenant references resolve
// to this kind as well, so existence never leaks across tenants.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a unique-constraint conflict error.
func Conflict(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: fmt.Sprintf(format, args...)}
}

// CacheFault wraps a cache backend failure. Callers treat it as a
// forced cache miss and never surface it.
func CacheFault(cause error) *Error {
	return &Error{Kind: KindCacheFault, Message: cause.Error(), cause: cause}
}

// Internal wraps an unexpected failure.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: cause.Error(), cause: cause}
}

// KindOf returns the kind of err, or KindInternal when err is not a
// structured engine error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

func IsValidation(err error) bool       { return IsKind(err, KindValidation) }
func IsPermissionDenied(err error) bool { return IsKind(err, KindPermissionDenied) }
func IsNotFound(err error) bool         { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool         { return IsKind(err, KindConflict) }
func IsCacheFault(err error) bool       { return IsKind(err, KindCacheFault) }
