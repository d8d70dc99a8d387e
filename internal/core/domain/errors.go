package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layer. Its string value is the
// stable tag rendered to clients.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindConflict        Kind = "ConflictError"
	KindAuthentication  Kind = "AuthenticationError"
	KindAuthorization   Kind = "AuthorizationError"
	KindNotFound        Kind = "NotFoundError"
	KindDependency      Kind = "DependencyError"
	KindTooManyRequests Kind = "TooManyRequests"
)

// Error is the error type returned by the core. Message is safe to show to
// clients; Err (optional) carries the internal cause and is never rendered.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrInvalidCredentials = &Error{Kind: KindAuthentication, Message: "invalid credentials"}
	ErrOAuthOnlyAccount   = &Error{Kind: KindAuthentication, Message: "this account uses Google sign-in; log in with Google"}
	ErrAuthRequired       = &Error{Kind: KindAuthentication, Message: "authentication required"}
	ErrTokenExpired       = &Error{Kind: KindAuthentication, Message: "token expired"}
	ErrInvalidToken       = &Error{Kind: KindAuthentication, Message: "invalid token"}
	ErrUserNotFound       = &Error{Kind: KindAuthentication, Message: "user not found"}
	ErrAccountDeactivated = &Error{Kind: KindAuthentication, Message: "account deactivated"}
	ErrWrongPassword      = &Error{Kind: KindAuthentication, Message: "current password is incorrect"}

	ErrAdminRequired = &Error{Kind: KindAuthorization, Message: "admin privileges required"}
	ErrForbidden     = &Error{Kind: KindAuthorization, Message: "access forbidden"}

	ErrUserExists   = &Error{Kind: KindConflict, Message: "user with this email or username already exists"}
	ErrDuplicateKey = &Error{Kind: KindConflict, Message: "duplicate key"}

	ErrNoPasswordSet = &Error{Kind: KindValidation, Message: "account has no password; it signs in with Google"}

	ErrTooManyRequests = &Error{Kind: KindTooManyRequests, Message: "too many requests, please try again later"}
)

// Validation returns a ValidationError carrying msg.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NotFound returns a NotFoundError for the named entity.
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

// Dependency wraps a persistence or identity-provider failure.
func Dependency(msg string, err error) *Error {
	return &Error{Kind: KindDependency, Message: msg, Err: err}
}

// KindOf reports the Kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
