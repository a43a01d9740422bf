package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"

	"civita/internal/audit"
	"civita/internal/device"
	"civita/internal/profile"
	"civita/internal/routes"
	"civita/internal/sentinel"
	"civita/pkg/faults"
)

const testUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

func (s *ControllerSuite) TestLoginRejectedCredentials() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	res, err := s.controller.Login(ctx, testEmail, "wrong-password", testUserAgent)

	s.Nil(res)
	s.True(faults.HasCode(err, faults.CodeInvalidCredential))
	s.Equal("incorrect email or password", faults.Translate(err))
	s.Empty(s.sessions.List(), "no session may survive a rejected login")
}

func (s *ControllerSuite) TestLoginUnknownAccountIndistinguishable() {
	ctx := context.Background()

	res, err := s.controller.Login(ctx, "nobody@x.com", "whatever", testUserAgent)

	s.Nil(res)
	s.True(faults.HasCode(err, faults.CodeInvalidCredential))
	s.Equal("incorrect email or password", faults.Translate(err))
}

func (s *ControllerSuite) TestLoginUnapprovedAccountIndistinguishable() {
	ctx := context.Background()
	sess, err := s.creds.SignUp(ctx, testEmail, testPassword)
	s.Require().NoError(err)
	s.Require().NoError(s.creds.SignOut(ctx, sess.ID))

	s.mockProfiles.EXPECT().
		FindByUID(gomock.Any(), sess.UID).
		Return(&profile.Profile{
			UID:    sess.UID,
			Email:  testEmail,
			Role:   profile.RoleNative,
			Status: profile.StatusPending,
		}, nil)

	res, loginErr := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)

	_, badPwErr := s.controller.Login(ctx, testEmail, "wrong-password", testUserAgent)

	s.Nil(res)
	s.True(faults.HasCode(loginErr, faults.CodeInvalidCredential))
	s.Equal(faults.Translate(badPwErr), faults.Translate(loginErr),
		"pending accounts must not be distinguishable from a bad password")
	s.Empty(s.sessions.List(), "the just-issued session must be discarded")
}

func (s *ControllerSuite) TestLoginMissingProfileRejected() {
	ctx := context.Background()
	sess, err := s.creds.SignUp(ctx, testEmail, testPassword)
	s.Require().NoError(err)
	s.Require().NoError(s.creds.SignOut(ctx, sess.ID))

	s.mockProfiles.EXPECT().
		FindByUID(gomock.Any(), sess.UID).
		Return(nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound))

	res, loginErr := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)

	s.Nil(res)
	s.True(faults.HasCode(loginErr, faults.CodeInvalidCredential))
	s.Empty(s.sessions.List())
}

func (s *ControllerSuite) TestLoginDispatchFailureRetainsNoSession() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		Return(errors.New("relay unavailable"))

	res, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)

	s.Nil(res)
	s.True(faults.HasCode(err, faults.CodeOTPSendFailure))
	s.Empty(s.sessions.List(), "dispatch failure must leave the caller on the credentials step")
}

func (s *ControllerSuite) TestLoginToVerifiedNativeFlow() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	var sentCode string
	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code, _ string) error {
			sentCode = code
			return nil
		})

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)
	s.Equal(StateOTPPending, login.State)
	s.Len(sentCode, 6)

	states := s.sessions.List()
	s.Require().Len(states, 1)
	s.False(states[0].OTPVerified)
	s.Contains(states[0].Device, "Chrome")

	res, err := s.controller.VerifyCode(ctx, login.ChallengeID, sentCode)
	s.Require().NoError(err)
	s.Equal(profile.RoleNative, res.Role)
	s.Equal(routes.NativeDashboard, res.Target)
	s.NotEmpty(res.Token)

	state, err := s.sessions.Find(res.SessionID)
	s.Require().NoError(err)
	s.True(state.OTPVerified)
	s.Equal(StateOTPVerified, state.State())
	s.Require().Len(s.verified, 1)
	s.Equal(res.SessionID, s.verified[0].SessionID)
}

func (s *ControllerSuite) TestLoginAuditsDeviceFingerprint() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		Return(nil)

	_, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)

	var issued *audit.Event
	for _, ev := range s.auditLog.Recent(0) {
		if ev.Action == audit.ActionOTPIssued {
			cp := ev
			issued = &cp
		}
	}
	s.Require().NotNil(issued, "login must record the otp_issued audit event")
	s.Equal(device.Fingerprint(testUserAgent), issued.Detail["device_fingerprint"])
	s.NotEmpty(issued.Detail["device_fingerprint"])
}

func (s *ControllerSuite) TestVerifyAdminTargetsAdminDashboard() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleAdmin)

	var sentCode string
	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code, _ string) error {
			sentCode = code
			return nil
		})

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)

	res, err := s.controller.VerifyCode(ctx, login.ChallengeID, sentCode)
	s.Require().NoError(err)
	s.Equal(routes.AdminDashboard, res.Target)
}

func (s *ControllerSuite) TestVerifyMismatchStaysPending() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	var sentCode string
	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code, _ string) error {
			sentCode = code
			return nil
		})

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)

	res, err := s.controller.VerifyCode(ctx, login.ChallengeID, "000000")
	s.Nil(res)
	s.True(faults.HasCode(err, faults.CodeOTPMismatch))
	s.Equal("invalid verification code", faults.Translate(err))

	states := s.sessions.List()
	s.Require().Len(states, 1)
	s.False(states[0].OTPVerified, "a mismatch must not verify the session")

	// The same challenge still accepts the correct code.
	verified, err := s.controller.VerifyCode(ctx, login.ChallengeID, sentCode)
	s.Require().NoError(err)
	s.True(verified.SessionID == states[0].SessionID)
}

func (s *ControllerSuite) TestVerifyExhaustionTearsDownSession() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		Return(nil)

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)

	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = s.controller.VerifyCode(ctx, login.ChallengeID, "000000")
	}
	s.True(faults.HasCode(lastErr, faults.CodeTooManyAttempts))
	s.Empty(s.sessions.List(), "exhausting the attempt cap must destroy the session")
}

func (s *ControllerSuite) TestCancelIsIdempotent() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		Return(nil)

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)

	for i := 0; i < 3; i++ {
		s.NoError(s.controller.Cancel(ctx, login.ChallengeID))
	}

	s.Empty(s.sessions.List(), "cancel must leave no residual session")
	_, found := s.challenges.Find(login.ChallengeID)
	s.False(found, "cancel must clear the issued code")
	s.Equal(1, s.loggedOut, "only the first cancel observes a live session")
}

func (s *ControllerSuite) TestLogoutDestroysSession() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	var sentCode string
	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code, _ string) error {
			sentCode = code
			return nil
		})

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)
	res, err := s.controller.VerifyCode(ctx, login.ChallengeID, sentCode)
	s.Require().NoError(err)

	s.NoError(s.controller.Logout(ctx, res.SessionID))
	s.False(s.sessions.Exists(res.SessionID))

	// Repeating logout is harmless.
	s.NoError(s.controller.Logout(ctx, res.SessionID))
	s.Equal(1, s.loggedOut)
}

func (s *ControllerSuite) TestForceLogoutRedirectTargets() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleAdmin)

	var sentCode string
	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code, _ string) error {
			sentCode = code
			return nil
		})

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)
	res, err := s.controller.VerifyCode(ctx, login.ChallengeID, sentCode)
	s.Require().NoError(err)

	target, err := s.controller.ForceLogout(ctx, res.SessionID, ReasonInactivity)
	s.NoError(err)
	s.Equal(routes.AdminLogin, target)

	// Unknown sessions fall back to the native login entry point.
	target, err = s.controller.ForceLogout(ctx, uuid.New(), ReasonInactivity)
	s.NoError(err)
	s.Equal(routes.NativeLogin, target)
}

func (s *ControllerSuite) TestRegisterCreatesPendingProfile() {
	ctx := context.Background()

	var saved *profile.Profile
	s.mockProfiles.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *profile.Profile) error {
			saved = p
			return nil
		})

	uid, err := s.controller.Register(ctx, &RegisterRequest{
		Email:    "new@x.com",
		Password: "secret1",
		FullName: "New Resident",
		Location: "Eastside",
	})
	s.Require().NoError(err)
	s.NotEmpty(uid)

	s.Require().NotNil(saved)
	s.Equal(profile.RoleNative, saved.Role)
	s.Equal(profile.StatusPending, saved.Status)
	s.Equal("New Resident", saved.FullName)
	s.Empty(s.sessions.List(), "registration must not log the user in")
}

func (s *ControllerSuite) TestRegisterRejectsBadEmail() {
	_, err := s.controller.Register(context.Background(), &RegisterRequest{
		Email:    "not-an-email",
		Password: "secret1",
	})
	s.True(faults.HasCode(err, faults.CodeInvalidEmailFormat))
}

func (s *ControllerSuite) TestVerifySessionResolvesToken() {
	ctx := context.Background()
	s.signUpApproved(profile.RoleNative)

	var sentCode string
	s.mockSender.EXPECT().
		SendCode(gomock.Any(), testEmail, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _, code, _ string) error {
			sentCode = code
			return nil
		})

	login, err := s.controller.Login(ctx, testEmail, testPassword, testUserAgent)
	s.Require().NoError(err)
	res, err := s.controller.VerifyCode(ctx, login.ChallengeID, sentCode)
	s.Require().NoError(err)

	info, err := s.controller.VerifySession(ctx, res.Token)
	s.Require().NoError(err)
	s.Equal(res.SessionID.String(), info.SessionID)
	s.Equal(testEmail, info.Email)
	s.True(info.OTPVerified)

	_, err = s.controller.VerifySession(ctx, "not-a-token")
	s.Error(err)
}
