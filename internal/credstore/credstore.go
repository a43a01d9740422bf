// Package credstore models the hosted credential backend: it authenticates
// email/password pairs and issues opaque session identities. The portal core
// only holds and watches the Session it returns; full authentication is
// decided elsewhere, after the OTP step.
package credstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Session is the identity handle issued on successful sign-in or sign-up.
type Session struct {
	ID        uuid.UUID
	UID       string
	Email     string
	Token     string
	CreatedAt time.Time
}

// Store is the credential backend surface consumed by the portal.
// Error Contract: SignIn and SignUp return *Error carrying a backend code;
// callers map codes into the portal taxonomy exactly once at the boundary.
type Store interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, sessionID uuid.UUID) error

	// OnAuthStateChanged registers a callback invoked with the session on
	// sign-in and with nil on sign-out. Returns an unsubscribe function.
	OnAuthStateChanged(fn func(*Session)) func()
}

// Error is a backend-specific failure with a provider error code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}
