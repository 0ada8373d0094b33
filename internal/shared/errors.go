package shared

import (
	"errors"
	"fmt"
)

// Kind classifies failures raised by the authorization core.
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required"
	KindPermissionDenied       Kind = "permission_denied"
	KindAccessDenied           Kind = "access_denied"
	KindNotFound               Kind = "not_found"
	KindValidationFailed       Kind = "validation_failed"
	KindConflict               Kind = "conflict"
	KindInternal               Kind = "internal_error"
)

var (
	// ErrAuthenticationRequired indicates no acting context could be resolved.
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired, Message: "authentication required"}
	// ErrPermissionDenied indicates the acting role lacks a permission.
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	// ErrAccessDenied indicates a tenant or ownership mismatch.
	ErrAccessDenied = &Error{Kind: KindAccessDenied, Message: "access denied"}
	// ErrNotFound indicates resource not found.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}
	// ErrValidation indicates a malformed request payload.
	ErrValidation = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	// ErrConflict indicates a duplicate submission.
	ErrConflict = &Error{Kind: KindConflict, Message: "conflict"}
	// ErrInternal is the catch-all kind for unexpected failures.
	ErrInternal = &Error{Kind: KindInternal, Message: "internal error"}

	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = &Error{Kind: KindAuthenticationRequired, Message: "invalid credentials"}
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = &Error{Kind: KindAccessDenied, Message: "csrf token missing"}
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = &Error{Kind: KindAccessDenied, Message: "csrf token mismatch"}
)

// Error carries a failure kind and a human-readable message. Two errors match
// under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is reports kind equality so callers can match against the sentinels above.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// AccessDenied builds an access denied error with a reason.
func AccessDenied(reason string) error {
	return &Error{Kind: KindAccessDenied, Message: "access denied: " + reason}
}

// PermissionDenied builds a permission denied error naming the permission.
func PermissionDenied(permission string) error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf("permission denied: %s", permission)}
}

// NotFound builds a not found error for a resource kind.
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// ValidationFailed builds a validation error with field level details.
func ValidationFailed(fields map[string]string) error {
	return &Error{Kind: KindValidationFailed, Message: "validation failed", Fields: fields}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
