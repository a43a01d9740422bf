// Package profile holds the durable per-user record: role, approval status
// and preferences. Profiles are created at registration time with pending
// status and mutated only by back-office approval decisions or by the user
// (theme, photo). This core never deletes a profile.
package profile

import "time"

// Role distinguishes citizen portal users from back-office staff.
type Role string

const (
	RoleNative Role = "native"
	RoleAdmin  Role = "admin"
)

// Status is the back-office approval state of an account.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Theme is the user's display preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Profile is the per-user document keyed by the credential-store uid.
// Invariant: exactly one Profile per uid, or none.
type Profile struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Location    string    `json:"location,omitempty"`
	Role        Role      `json:"role"`
	Status      Status    `json:"status"`
	Theme       Theme     `json:"theme"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsApproved reports whether the account passed back-office review.
func (p *Profile) IsApproved() bool {
	return p.Status == StatusApproved
}

// SnapshotState is the tri-state of an observed profile source.
type SnapshotState string

const (
	SnapshotLoading SnapshotState = "loading"
	SnapshotNone    SnapshotState = "none"
	SnapshotValue   SnapshotState = "value"
)

// Snapshot is one observation of a profile. Guards and the pending-approval
// view consume snapshots uniformly instead of mixing one-shot fetches with
// subscription values.
type Snapshot struct {
	State   SnapshotState `json:"state"`
	Profile *Profile      `json:"profile,omitempty"`
}

// Loading returns the snapshot used before the first observation settles.
func Loading() Snapshot { return Snapshot{State: SnapshotLoading} }

// None returns the snapshot for a uid with no profile document.
func None() Snapshot { return Snapshot{State: SnapshotNone} }

// Value returns a snapshot carrying a profile.
func Value(p *Profile) Snapshot { return Snapshot{State: SnapshotValue, Profile: p} }
