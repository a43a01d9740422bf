package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"civita/internal/audit"
	"civita/internal/credstore"
	"civita/internal/device"
	"civita/internal/otp"
	"civita/internal/platform/clock"
	"civita/internal/platform/metrics"
	"civita/internal/platform/middleware"
	"civita/internal/profile"
	"civita/internal/routes"
	"civita/internal/sentinel"
	"civita/internal/token"
	"civita/internal/tracer"
	emailpkg "civita/pkg/email"
	"civita/pkg/faults"
)

// ProfileStore defines the profile persistence the controller needs.
// Error Contract: FindByUID returns sentinel.ErrNotFound (wrapped) when no
// profile document exists for the uid.
type ProfileStore interface {
	FindByUID(ctx context.Context, uid string) (*profile.Profile, error)
	Save(ctx context.Context, p *profile.Profile) error
}

// Hooks lets the wiring layer observe session lifecycle transitions without
// the controller depending on the watchdog supervisor.
type Hooks struct {
	// OnVerified fires after a session becomes fully authenticated.
	OnVerified func(state *AuthState)
	// OnLoggedOut fires after a session is torn down for any reason.
	OnLoggedOut func(sessionID uuid.UUID)
}

// Controller owns the multi-step login protocol: credential check, approval
// gating, OTP challenge, and session teardown.
type Controller struct {
	creds      credstore.Store
	profiles   ProfileStore
	challenges *otp.Registry
	sender     otp.Sender
	sessions   *Registry
	tokens     *token.Service

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   audit.Publisher
	tracer  tracer.Tracer
	clock   clock.Clock
	hooks   Hooks
}

// Option configures the Controller.
type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithAuditPublisher(publisher audit.Publisher) Option {
	return func(c *Controller) {
		c.audit = publisher
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(c *Controller) {
		c.tracer = t
	}
}

func WithClock(cl clock.Clock) Option {
	return func(c *Controller) {
		c.clock = cl
	}
}

func WithHooks(h Hooks) Option {
	return func(c *Controller) {
		c.hooks = h
	}
}

// NewController constructs the access controller with required dependencies.
func NewController(
	creds credstore.Store,
	profiles ProfileStore,
	challenges *otp.Registry,
	sender otp.Sender,
	sessions *Registry,
	tokens *token.Service,
	opts ...Option,
) (*Controller, error) {
	if creds == nil || profiles == nil || challenges == nil || sender == nil || sessions == nil || tokens == nil {
		return nil, fmt.Errorf("creds, profiles, challenges, sender, sessions, and tokens are required")
	}
	c := &Controller{
		creds:      creds,
		profiles:   profiles,
		challenges: challenges,
		sender:     sender,
		sessions:   sessions,
		tokens:     tokens,
		clock:      clock.System(),
		tracer:     tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Login runs the first two protocol transitions: credential submission and
// the profile approval check. On success a code is dispatched and the caller
// holds a challenge ID; the session exists but is not yet fully
// authenticated. Every failure path leaves no session behind.
//
// Unapproved and nonexistent accounts fail with exactly the same generic
// invalid-credential error as a wrong password, so the login screen cannot
// be used to probe approval state.
func (c *Controller) Login(ctx context.Context, email, password, userAgent string) (*LoginResult, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLogin,
		tracer.String("email_hash", tracer.HashEmail(email)),
	)
	var retErr error
	defer func() { span.End(retErr) }()

	sess, err := c.creds.SignIn(ctx, email, password)
	if err != nil {
		mapped := mapBackendErr(err)
		c.logAuthFailure(ctx, "credential_rejected", false,
			"email_hash", tracer.HashEmail(email),
		)
		c.incrementLogin("rejected")
		c.emitAudit(ctx, audit.ActionLoginFailed, email, uuid.Nil, nil)
		retErr = mapped
		return nil, mapped
	}

	prof, err := c.profiles.FindByUID(ctx, sess.UID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		c.discardSession(ctx, sess.ID)
		retErr = faults.Wrap(err, faults.CodeInternal, "failed to load profile")
		return nil, retErr
	}
	if prof == nil || !prof.IsApproved() {
		// Deliberate obfuscation: discard the just-issued session and answer
		// exactly as if the password was wrong.
		c.discardSession(ctx, sess.ID)
		c.logAuthFailure(ctx, "account_not_approved", false,
			"uid", sess.UID,
		)
		c.incrementLogin("rejected")
		c.emitAudit(ctx, audit.ActionLoginRejected, email, sess.ID, map[string]string{"uid": sess.UID})
		retErr = faults.New(faults.CodeInvalidCredential, "incorrect email or password")
		return nil, retErr
	}

	code, err := otp.GenerateCode()
	if err != nil {
		c.discardSession(ctx, sess.ID)
		retErr = faults.Wrap(err, faults.CodeInternal, "failed to generate code")
		return nil, retErr
	}

	displayName := prof.FullName
	if displayName == "" {
		displayName = emailpkg.DisplayName(sess.Email)
	}
	if err := c.sender.SendCode(ctx, sess.Email, code, displayName); err != nil {
		// No session may be retained when dispatch fails; the user stays on
		// the credentials step.
		c.discardSession(ctx, sess.ID)
		c.logAuthFailure(ctx, "otp_dispatch_failed", true,
			"uid", sess.UID,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.IncrementOTPSendFailures()
		}
		retErr = faults.Wrap(err, faults.CodeOTPSendFailure, "failed to send verification code")
		return nil, retErr
	}

	challenge := c.challenges.Issue(sess.ID, sess.UID, sess.Email, code)

	now := c.clock.Now()
	c.sessions.Save(&AuthState{
		SessionID:   sess.ID,
		UID:         sess.UID,
		Email:       sess.Email,
		Role:        prof.Role,
		OTPVerified: false,
		Device:      device.DisplayName(userAgent),
		CreatedAt:   now,
		LastSeenAt:  now,
	})

	detail := map[string]string{"uid": sess.UID}
	if fp := device.Fingerprint(userAgent); fp != "" {
		detail["device_fingerprint"] = fp
	}
	c.emitAudit(ctx, audit.ActionOTPIssued, sess.Email, sess.ID, detail)
	if c.metrics != nil {
		c.metrics.IncrementOTPIssued()
		c.metrics.IncrementActiveSessions(1)
	}
	c.incrementLogin("otp_pending")
	span.AddEvent("otp_issued")

	return &LoginResult{ChallengeID: challenge.ID, State: StateOTPPending}, nil
}

// VerifyCode runs the otp_pending -> otp_verified transition. On mismatch the
// challenge stays pending until its attempt cap; expiry and exhaustion tear
// the half-authenticated session down.
func (c *Controller) VerifyCode(ctx context.Context, challengeID uuid.UUID, input string) (*VerifyResult, error) {
	ctx, span := c.tracer.Start(ctx, tracer.SpanVerify)
	var retErr error
	defer func() { span.End(retErr) }()

	challenge, err := c.challenges.Verify(challengeID, input)
	if err != nil {
		retErr = c.verifyFailure(ctx, challengeID, challenge, err)
		return nil, retErr
	}

	if err := c.sessions.MarkVerified(challenge.SessionID); err != nil {
		retErr = faults.New(faults.CodeRequiresReauth, "session no longer exists")
		return nil, retErr
	}

	state, err := c.sessions.Find(challenge.SessionID)
	if err != nil {
		retErr = faults.New(faults.CodeRequiresReauth, "session no longer exists")
		return nil, retErr
	}

	tok, err := c.tokens.Mint(state.SessionID, state.UID, state.Email)
	if err != nil {
		retErr = faults.Wrap(err, faults.CodeInternal, "failed to issue session token")
		return nil, retErr
	}

	target := routes.NativeDashboard
	if state.Role != profile.RoleNative {
		target = routes.AdminDashboard
	}

	c.emitAudit(ctx, audit.ActionOTPVerified, state.Email, state.SessionID, map[string]string{
		"role":   string(state.Role),
		"target": string(target),
	})
	c.incrementLogin("verified")
	span.SetAttributes(tracer.String("role", string(state.Role)))

	if c.hooks.OnVerified != nil {
		c.hooks.OnVerified(state)
	}

	return &VerifyResult{
		SessionID: state.SessionID,
		Role:      state.Role,
		Token:     tok,
		Target:    target,
	}, nil
}

func (c *Controller) verifyFailure(ctx context.Context, challengeID uuid.UUID, challenge *otp.Challenge, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidInput):
		c.logAuthFailure(ctx, "otp_mismatch", false, "challenge_id", challengeID.String())
		if c.metrics != nil {
			c.metrics.IncrementOTPMismatches()
		}
		c.emitAudit(ctx, audit.ActionOTPMismatch, "", uuid.Nil, map[string]string{"challenge_id": challengeID.String()})
		return faults.New(faults.CodeOTPMismatch, "invalid verification code")
	case errors.Is(err, sentinel.ErrExhausted):
		if challenge != nil {
			c.teardown(ctx, challenge.SessionID, ReasonCancelled)
		}
		c.logAuthFailure(ctx, "otp_attempts_exhausted", false, "challenge_id", challengeID.String())
		return faults.New(faults.CodeTooManyAttempts, "too many attempts, please try again later")
	case errors.Is(err, sentinel.ErrExpired):
		if challenge != nil {
			c.teardown(ctx, challenge.SessionID, ReasonCancelled)
		}
		return faults.New(faults.CodeRequiresReauth, "verification code expired, sign in again")
	default:
		return faults.New(faults.CodeRequiresReauth, "no pending verification, sign in again")
	}
}

// Cancel implements "back to login" from the OTP step: the partially
// authenticated session is discarded and the issued code cleared. Calling it
// any number of times ends in the logged-out state.
func (c *Controller) Cancel(ctx context.Context, challengeID uuid.UUID) error {
	challenge := c.challenges.Discard(challengeID)
	if challenge == nil {
		return nil
	}
	c.teardown(ctx, challenge.SessionID, ReasonCancelled)
	return nil
}

// Logout destroys the session explicitly.
func (c *Controller) Logout(ctx context.Context, sessionID uuid.UUID) error {
	ctx, span := c.tracer.Start(ctx, tracer.SpanLogout)
	c.teardown(ctx, sessionID, ReasonExplicit)
	span.End(nil)
	return nil
}

// ForceLogout destroys the session on behalf of the inactivity watchdog.
// The returned route is where the client must navigate next.
func (c *Controller) ForceLogout(ctx context.Context, sessionID uuid.UUID, reason LogoutReason) (routes.Route, error) {
	state, err := c.sessions.Find(sessionID)
	target := routes.NativeLogin
	if err == nil && state.Role == profile.RoleAdmin {
		target = routes.AdminLogin
	}
	c.teardown(ctx, sessionID, reason)
	return target, nil
}

// teardown removes all session state: registry record, credential session,
// and thereby the OTP-verified flag, whose lifetime is the record's.
func (c *Controller) teardown(ctx context.Context, sessionID uuid.UUID, reason LogoutReason) {
	state, _ := c.sessions.Find(sessionID)
	removed := c.sessions.Delete(sessionID)

	if err := c.creds.SignOut(ctx, sessionID); err != nil {
		// Logout failures must not block leaving the authenticated area.
		c.logger.ErrorContext(ctx, "credential sign-out failed",
			"session_id", sessionID.String(),
			"error", err,
		)
	}

	if !removed {
		return
	}

	action := audit.ActionLogout
	if reason == ReasonInactivity {
		action = audit.ActionInactivityLogout
	}
	actor := ""
	role := ""
	if state != nil {
		actor = state.Email
		role = string(state.Role)
	}
	c.emitAudit(ctx, action, actor, sessionID, map[string]string{"reason": string(reason), "role": role})
	if c.metrics != nil {
		c.metrics.DecrementActiveSessions(1)
		if reason == ReasonInactivity {
			c.metrics.IncrementInactivityLogouts(role)
		}
	}
	if c.hooks.OnLoggedOut != nil {
		c.hooks.OnLoggedOut(sessionID)
	}
}

// discardSession drops a credential session that never became an AuthState.
func (c *Controller) discardSession(ctx context.Context, sessionID uuid.UUID) {
	if err := c.creds.SignOut(ctx, sessionID); err != nil {
		c.logger.ErrorContext(ctx, "failed to discard session",
			"session_id", sessionID.String(),
			"error", err,
		)
	}
}

// Register creates a credential account plus a pending native profile. The
// account cannot pass login until the back office approves it.
func (c *Controller) Register(ctx context.Context, req *RegisterRequest) (string, error) {
	if !emailpkg.IsValid(req.Email) {
		return "", faults.New(faults.CodeInvalidEmailFormat, "enter a valid email address")
	}

	sess, err := c.creds.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return "", mapBackendErr(err)
	}

	fullName := req.FullName
	if fullName == "" {
		fullName = emailpkg.DisplayName(sess.Email)
	}
	prof := &profile.Profile{
		UID:         sess.UID,
		Email:       sess.Email,
		FullName:    fullName,
		PhoneNumber: req.PhoneNumber,
		Location:    req.Location,
		Role:        profile.RoleNative,
		Status:      profile.StatusPending,
		Theme:       profile.ThemeLight,
		CreatedAt:   c.clock.Now(),
	}
	if err := c.profiles.Save(ctx, prof); err != nil {
		c.discardSession(ctx, sess.ID)
		return "", faults.Wrap(err, faults.CodeInternal, "failed to create profile")
	}

	// Registration does not log the user in: the session is discarded and
	// the account waits for approval.
	c.discardSession(ctx, sess.ID)

	c.emitAudit(ctx, audit.ActionAccountRegistered, sess.Email, uuid.Nil, map[string]string{"uid": sess.UID})
	if c.metrics != nil {
		c.metrics.IncrementAccountsRegistered()
	}
	return sess.UID, nil
}

// Resolve returns the AuthState for a live session ID.
func (c *Controller) Resolve(ctx context.Context, sessionID uuid.UUID) (*AuthState, error) {
	state, err := c.sessions.Find(sessionID)
	if err != nil {
		return nil, faults.New(faults.CodeRequiresReauth, "session not found")
	}
	return state, nil
}

// VerifySession implements middleware.SessionVerifier: it parses a bearer
// token and resolves the live session behind it.
func (c *Controller) VerifySession(ctx context.Context, tokenString string) (*middleware.SessionInfo, error) {
	claims, err := c.tokens.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, faults.New(faults.CodeRequiresReauth, "invalid session token")
	}
	state, err := c.sessions.Find(id)
	if err != nil {
		return nil, faults.New(faults.CodeRequiresReauth, "session not found")
	}
	c.sessions.RecordActivity(id, c.clock.Now())
	return &middleware.SessionInfo{
		SessionID:   state.SessionID.String(),
		UID:         state.UID,
		Email:       state.Email,
		Role:        string(state.Role),
		OTPVerified: state.OTPVerified,
	}, nil
}

func (c *Controller) emitAudit(ctx context.Context, action audit.Action, actor string, sessionID uuid.UUID, detail map[string]string) {
	args := []any{"event", string(action), "log_type", "audit"}
	if actor != "" {
		args = append(args, "actor", actor)
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	c.logger.InfoContext(ctx, string(action), args...)

	if c.audit == nil {
		return
	}
	ev := audit.Event{
		At:     c.clock.Now(),
		Action: action,
		Actor:  actor,
		Detail: detail,
	}
	if sessionID != uuid.Nil {
		ev.SessionID = sessionID.String()
	}
	_ = c.audit.Emit(ctx, ev)
}

func (c *Controller) logAuthFailure(ctx context.Context, reason string, isError bool, attributes ...any) {
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", "auth_failed", "reason", reason, "log_type", "standard")
	if isError {
		c.logger.ErrorContext(ctx, "auth_failed", args...)
		return
	}
	c.logger.WarnContext(ctx, "auth_failed", args...)
}

func (c *Controller) incrementLogin(result string) {
	if c.metrics != nil {
		c.metrics.IncrementLoginAttempts(result)
	}
}

// mapBackendErr translates credential-provider errors through the fixed
// taxonomy exactly once, at this boundary.
func mapBackendErr(err error) error {
	var be *credstore.Error
	if errors.As(err, &be) {
		return faults.FromBackend(be.Code, be.Message)
	}
	return faults.Wrap(err, faults.CodeUnknown, err.Error())
}

var _ middleware.SessionVerifier = (*Controller)(nil)
