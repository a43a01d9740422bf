// Package audit records security-relevant portal events: login outcomes, OTP
// lifecycle, approval decisions and forced logouts. Events never carry
// passwords or OTP codes.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action identifies the kind of audited event.
type Action string

const (
	ActionAccountRegistered Action = "account_registered"
	ActionLoginFailed       Action = "login_failed"
	ActionLoginRejected     Action = "login_rejected"
	ActionOTPIssued         Action = "otp_issued"
	ActionOTPMismatch       Action = "otp_mismatch"
	ActionOTPVerified       Action = "otp_verified"
	ActionLogout            Action = "logout"
	ActionInactivityLogout  Action = "inactivity_logout"
	ActionAccountApproved   Action = "account_approved"
	ActionAccountRejected   Action = "account_rejected"
)

// Event is a single audit record.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	At        time.Time         `json:"at"`
	Action    Action            `json:"action"`
	Actor     string            `json:"actor,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Publisher accepts audit events. Implementations must not block the caller
// beyond in-memory bookkeeping.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
