// Package apperr defines the error kinds surfaced to the presentation layer.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an authentication failure.
type Code string

// Authentication failure codes.
const (
	CodeInvalidCredentials Code = "invalid-credentials"
	CodeEmailInUse         Code = "email-already-in-use"
	CodeUserNotFound       Code = "user-not-found"
	CodeWeakPassword       Code = "weak-password"
	CodeInvalidEmail       Code = "invalid-email"
	CodeTooManyAttempts    Code = "too-many-attempts"
	CodeNetwork            Code = "network"
)

// Provider sentinels. Authentication providers return these (possibly wrapped) so
// the session layer can classify failures without knowing the provider.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailInUse         = errors.New("an account with this email already exists")
	ErrUserNotFound       = errors.New("no account found for this email")
	ErrWeakPassword       = errors.New("password is too weak")
	ErrInvalidEmail       = errors.New("email address is invalid")
	ErrAccountLocked      = errors.New("too many failed attempts, try again later")
)

// AuthError is returned by session operations that reach the authentication provider.
// It is never retried automatically.
type AuthError struct {
	Op   string
	Code Code
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Message is the text shown to the user.
func (e *AuthError) Message() string {
	switch e.Code {
	case CodeInvalidCredentials:
		return "Invalid email or password."
	case CodeEmailInUse:
		return "An account with this email already exists."
	case CodeUserNotFound:
		return "No account found for this email."
	case CodeWeakPassword:
		return "Password must be at least 6 characters."
	case CodeInvalidEmail:
		return "Please enter a valid email address."
	case CodeTooManyAttempts:
		return "Too many failed attempts. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}

// NewAuthError wraps err with the code matching its provider sentinel.
// Unrecognised errors are classified as network failures.
func NewAuthError(op string, err error) *AuthError {
	return &AuthError{Op: op, Code: classify(err), Err: err}
}

func classify(err error) Code {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrEmailInUse):
		return CodeEmailInUse
	case errors.Is(err, ErrUserNotFound):
		return CodeUserNotFound
	case errors.Is(err, ErrWeakPassword):
		return CodeWeakPassword
	case errors.Is(err, ErrInvalidEmail):
		return CodeInvalidEmail
	case errors.Is(err, ErrAccountLocked):
		return CodeTooManyAttempts
	default:
		return CodeNetwork
	}
}

// IsAuthCode reports whether err is an AuthError with the given code.
func IsAuthCode(err error, code Code) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}

// StateError reports a mutation attempted without the state it needs.
// It is fatal to the attempted operation only.
type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// IsStateError reports whether err is or wraps a StateError.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}
