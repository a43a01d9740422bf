// Package guard holds the pure route-guard decision logic: given the current
// auth state and a profile snapshot, decide whether a navigation renders
// protected content, a pending-approval screen, a loading indicator, or a
// redirect. Guards never mutate state; teardown belongs to the controller.
package guard

import (
	"strings"

	"civita/internal/profile"
	"civita/internal/routes"
	"civita/internal/session"
)

// Verdict is the outcome class of a guard decision.
type Verdict string

const (
	// VerdictAllow renders the protected content.
	VerdictAllow Verdict = "allow"
	// VerdictRedirect navigates to Decision.Target instead.
	VerdictRedirect Verdict = "redirect"
	// VerdictPending renders the pending-approval view in place.
	VerdictPending Verdict = "pending"
	// VerdictLoading renders a loading indicator while the profile snapshot
	// is still in flight. Never a redirect.
	VerdictLoading Verdict = "loading"
)

// Decision is one guard outcome. Target is set only for VerdictRedirect.
type Decision struct {
	Verdict Verdict      `json:"verdict"`
	Target  routes.Route `json:"target,omitempty"`
}

// BootstrapPolicy decides whether an email belongs to the super-admin
// bootstrap account, which is exempt from the OTP gate and from native/admin
// role exclusivity.
type BootstrapPolicy interface {
	IsBootstrapAccount(email string) bool
}

// StaticPolicy is a BootstrapPolicy matching one configured address.
type StaticPolicy struct {
	email string
}

// NewStaticPolicy constructs a StaticPolicy for the given address.
func NewStaticPolicy(email string) *StaticPolicy {
	return &StaticPolicy{email: strings.ToLower(strings.TrimSpace(email))}
}

func (p *StaticPolicy) IsBootstrapAccount(email string) bool {
	return p.email != "" && strings.ToLower(strings.TrimSpace(email)) == p.email
}

// Guard evaluates route access with an injected bootstrap policy.
type Guard struct {
	bootstrap BootstrapPolicy
}

// New constructs a Guard. A nil policy means no bootstrap account exists.
func New(policy BootstrapPolicy) *Guard {
	if policy == nil {
		policy = NewStaticPolicy("")
	}
	return &Guard{bootstrap: policy}
}

// Admin gates back-office routes. A native-profile holder is never treated
// as admin, with the bootstrap account as the only exemption.
func (g *Guard) Admin(state *session.AuthState, snap profile.Snapshot) Decision {
	if state == nil || state.State() == session.StateLoggedOut {
		return Decision{Verdict: VerdictRedirect, Target: routes.AdminLogin}
	}
	if snap.State == profile.SnapshotLoading {
		return Decision{Verdict: VerdictLoading}
	}
	if snap.State == profile.SnapshotValue && snap.Profile.Role == profile.RoleNative &&
		!g.bootstrap.IsBootstrapAccount(state.Email) {
		return Decision{Verdict: VerdictRedirect, Target: routes.NativeDashboard}
	}
	return Decision{Verdict: VerdictAllow}
}

// Native gates the citizen portal. The OTP requirement is re-checked on
// every navigation, not only at login time.
func (g *Guard) Native(state *session.AuthState, snap profile.Snapshot) Decision {
	if snap.State == profile.SnapshotLoading {
		return Decision{Verdict: VerdictLoading}
	}
	if state == nil || state.State() == session.StateLoggedOut {
		return Decision{Verdict: VerdictRedirect, Target: routes.NativeLogin}
	}
	if snap.State != profile.SnapshotValue || snap.Profile.Role != profile.RoleNative {
		return Decision{Verdict: VerdictRedirect, Target: routes.NativeLogin}
	}
	if !state.OTPVerified && !g.bootstrap.IsBootstrapAccount(state.Email) {
		return Decision{Verdict: VerdictRedirect, Target: routes.NativeLogin}
	}
	if snap.Profile.Status != profile.StatusApproved {
		return Decision{Verdict: VerdictPending}
	}
	return Decision{Verdict: VerdictAllow}
}
