// Package session implements the portal's login protocol: credential check,
// OTP challenge, role/approval gating, and session lifecycle. A credential
// session alone is not enough to reach protected content; the OTPVerified
// flag lives on AuthState with the same lifetime as the session itself, so
// the two can never diverge.
package session

import (
	"time"

	"github.com/google/uuid"

	"civita/internal/profile"
	"civita/internal/routes"
)

// State names the login protocol states.
type State string

const (
	StateLoggedOut   State = "logged_out"
	StateOTPPending  State = "otp_pending"
	StateOTPVerified State = "otp_verified"
)

// AuthState is the in-memory record for one credential session. It is
// created when credentials validate and the account is approved, marked
// verified after the OTP step, and deleted on any logout.
type AuthState struct {
	SessionID   uuid.UUID
	UID         string
	Email       string
	Role        profile.Role
	OTPVerified bool
	Device      string
	CreatedAt   time.Time
	LastSeenAt  time.Time
}

// State reports the protocol state this record represents.
func (a *AuthState) State() State {
	if a == nil {
		return StateLoggedOut
	}
	if a.OTPVerified {
		return StateOTPVerified
	}
	return StateOTPPending
}

// LoginResult is returned when credentials validate and a code was dispatched.
type LoginResult struct {
	ChallengeID uuid.UUID
	State       State
}

// VerifyResult is returned on a successful OTP verification.
type VerifyResult struct {
	SessionID uuid.UUID
	Role      profile.Role
	Token     string
	Target    routes.Route
}

// RegisterRequest carries the fields collected by the sign-up form.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Location    string `json:"location"`
}

// LogoutReason distinguishes explicit logout from the inactivity watchdog.
type LogoutReason string

const (
	ReasonExplicit   LogoutReason = "explicit"
	ReasonInactivity LogoutReason = "inactivity"
	ReasonCancelled  LogoutReason = "cancelled"
)
