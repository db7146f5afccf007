package errors

import (
	"errors"
	"fmt"
)

// Error kinds raised by the authorization server. Each one maps to a single
// HTTP status at the server boundary.
var (
	// Input errors
	ErrValidation           = errors.New("validation error")
	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")

	// Authentication and grant errors
	ErrInvalidClient      = errors.New("invalid client")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidGrant       = errors.New("invalid grant")

	// Federation errors
	ErrStateMismatch = errors.New("state mismatch")
	ErrMissingCode   = errors.New("missing code")
	ErrConfiguration = errors.New("configuration error")
	ErrProvider      = errors.New("provider error")

	// Downstream errors
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Error carries a kind, a message that is safe to show to the caller, and an
// optional underlying cause that is only ever logged.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// New returns an error of the given kind with a caller-safe message.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithCause returns an error of the given kind that also wraps cause.
func WithCause(kind error, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Message returns the caller-safe message of err, or fallback when err does
// not carry one.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
