package session

//go:generate mockgen -source=controller.go -destination=mocks/mocks.go -package=mocks ProfileStore
//go:generate mockgen -source=../otp/sender.go -destination=mocks/sender_mock.go -package=mocks Sender
//go:generate mockgen -source=../audit/audit.go -destination=mocks/publisher_mock.go -package=mocks Publisher

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"civita/internal/audit"
	"civita/internal/credstore"
	"civita/internal/otp"
	"civita/internal/platform/clock"
	"civita/internal/profile"
	"civita/internal/session/mocks"
	"civita/internal/token"
)

const (
	testEmail    = "a@x.com"
	testPassword = "secret1"
)

type ControllerSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockProfiles *mocks.MockProfileStore
	mockSender   *mocks.MockSender

	clock      *clock.Fake
	creds      *credstore.MemoryStore
	challenges *otp.Registry
	sessions   *Registry
	tokens     *token.Service
	auditLog   *audit.MemoryLog
	controller *Controller

	verified  []*AuthState
	loggedOut int
}

func (s *ControllerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockProfiles = mocks.NewMockProfileStore(s.ctrl)
	s.mockSender = mocks.NewMockSender(s.ctrl)

	s.clock = clock.NewFake(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	s.tokens = token.NewService("test-signing-key", "civita-test", time.Hour)
	s.creds = credstore.NewMemoryStore(s.tokens)
	s.challenges = otp.NewRegistry(otp.WithClock(s.clock))
	s.sessions = NewRegistry()
	s.auditLog = audit.NewMemoryLog(0)
	s.verified = nil
	s.loggedOut = 0

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.controller, err = NewController(
		s.creds,
		s.mockProfiles,
		s.challenges,
		s.mockSender,
		s.sessions,
		s.tokens,
		WithLogger(logger),
		WithAuditPublisher(s.auditLog),
		WithClock(s.clock),
		WithHooks(Hooks{
			OnVerified:  func(state *AuthState) { s.verified = append(s.verified, state) },
			OnLoggedOut: func(uuid.UUID) { s.loggedOut++ },
		}),
	)
	s.Require().NoError(err)
}

func (s *ControllerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

// signUpApproved registers an account directly against the credential store
// and wires the profile mock to report it approved with the given role.
func (s *ControllerSuite) signUpApproved(role profile.Role) string {
	sess, err := s.creds.SignUp(s.T().Context(), testEmail, testPassword)
	s.Require().NoError(err)
	s.Require().NoError(s.creds.SignOut(s.T().Context(), sess.ID))

	s.mockProfiles.EXPECT().
		FindByUID(gomock.Any(), sess.UID).
		Return(&profile.Profile{
			UID:    sess.UID,
			Email:  testEmail,
			Role:   role,
			Status: profile.StatusApproved,
			Theme:  profile.ThemeLight,
		}, nil).
		AnyTimes()
	return sess.UID
}
