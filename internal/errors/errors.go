package errors

import (
	"errors"
	"fmt"
)

// Common error values for the routing and identity core
var (
	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Tenant errors
	ErrTenantNotFound      = errors.New("tenant not found")
	ErrTenantNotOnboarded  = errors.New("tenant not onboarded")
	ErrTenantUnresolved    = errors.New("tenant could not be resolved")
	ErrPoolCreationFailure = errors.New("tenant pool creation failed")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Kind classifies a failure so callers can pick a response without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindMissingCredential
	KindInvalidToken
	KindExpiredToken
	KindSessionNotFound
	KindTenantUnresolved
	KindTenantNotOnboarded
	KindPoolCreationFailure
)

var kindNames = map[Kind]string{
	KindInternal:            "internal",
	KindMissingCredential:   "missing_credential",
	KindInvalidToken:        "invalid_token",
	KindExpiredToken:        "expired_token",
	KindSessionNotFound:     "session_not_found",
	KindTenantUnresolved:    "tenant_unresolved",
	KindTenantNotOnboarded:  "tenant_not_onboarded",
	KindPoolCreationFailure: "pool_creation_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Unauthenticated reports whether the kind is answered with a 401 at the edge.
func (k Kind) Unauthenticated() bool {
	switch k {
	case KindMissingCredential, KindInvalidToken, KindExpiredToken, KindSessionNotFound, KindTenantUnresolved:
		return true
	}
	return false
}

// Recoverable reports whether a later retry of the same operation may succeed.
func (k Kind) Recoverable() bool {
	return k == KindPoolCreationFailure
}

// Error carries a Kind, a message that is safe to return to a client, and the
// underlying cause which is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with no cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind around err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err, or fallback when err carries none.
func MessageOf(err error, fallback string) string {
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
