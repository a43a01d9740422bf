package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"civita/internal/platform/clock"
	"civita/internal/profile"
	"civita/internal/session"
)

// Activity names the interaction kinds that reset a session's countdown.
type Activity string

const (
	ActivityPointerPress Activity = "pointer_press"
	ActivityPointerMove  Activity = "pointer_move"
	ActivityKeyPress     Activity = "key_press"
	ActivityScroll       Activity = "scroll"
	ActivityTouchStart   Activity = "touch_start"
	ActivityRequest      Activity = "request"
)

// Resolver reports whether a session is still alive. The arming predicate of
// every watchdog consults it, so a torn-down session can never re-arm.
type Resolver interface {
	Exists(id uuid.UUID) bool
}

// terminateFunc forces a session logout on expiry. Errors are logged, never
// retried; the client learns about the dead session on its next request.
type terminateFunc func(ctx context.Context, id uuid.UUID, reason session.LogoutReason) error

// Supervisor runs one Watchdog per fully authenticated session, with the
// timeout chosen by role. Admin sessions idle out faster than native ones.
type Supervisor struct {
	mu   sync.Mutex
	dogs map[uuid.UUID]*entry

	adminTimeout  time.Duration
	nativeTimeout time.Duration
	resolver      Resolver
	terminate     terminateFunc
	clock         clock.Clock
	logger        *slog.Logger
	onExpired     func(role profile.Role)
}

type entry struct {
	dog  *Watchdog
	role profile.Role
}

// SupervisorOption configures a Supervisor.
type SupervisorOption func(*Supervisor)

// WithSupervisorClock overrides the clock used by new watchdogs, for tests.
func WithSupervisorClock(c clock.Clock) SupervisorOption {
	return func(s *Supervisor) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSupervisorLogger overrides the logger.
func WithSupervisorLogger(logger *slog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExpiryObserver registers a callback invoked after each inactivity
// logout, keyed by role. Used for metrics.
func WithExpiryObserver(fn func(role profile.Role)) SupervisorOption {
	return func(s *Supervisor) {
		s.onExpired = fn
	}
}

// NewSupervisor constructs a Supervisor. terminate is invoked on expiry with
// the expiring session ID.
func NewSupervisor(
	adminTimeout, nativeTimeout time.Duration,
	resolver Resolver,
	terminate func(ctx context.Context, id uuid.UUID, reason session.LogoutReason) error,
	opts ...SupervisorOption,
) *Supervisor {
	s := &Supervisor{
		dogs:          make(map[uuid.UUID]*entry),
		adminTimeout:  adminTimeout,
		nativeTimeout: nativeTimeout,
		resolver:      resolver,
		terminate:     terminate,
		clock:         clock.System(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount starts the inactivity countdown for a fully authenticated session.
// Mounting an already-mounted session restarts its countdown.
func (s *Supervisor) Mount(state *session.AuthState) {
	if state == nil {
		return
	}
	id := state.SessionID
	role := state.Role
	timeout := s.nativeTimeout
	if role == profile.RoleAdmin {
		timeout = s.adminTimeout
	}

	armed := func() bool {
		return s.resolver.Exists(id)
	}
	onExpire := func() {
		s.expire(id, role)
	}

	s.mu.Lock()
	if existing, ok := s.dogs[id]; ok {
		existing.dog.Stop()
	}
	dog := New(timeout, armed, onExpire, WithClock(s.clock))
	s.dogs[id] = &entry{dog: dog, role: role}
	s.mu.Unlock()

	dog.Arm()
}

// Touch resets the countdown for a session in response to activity.
func (s *Supervisor) Touch(id uuid.UUID, activity Activity) {
	s.mu.Lock()
	e, ok := s.dogs[id]
	s.mu.Unlock()
	if !ok {
		return
	}
	e.dog.Touch()
	s.logger.Debug("activity observed",
		"session_id", id.String(),
		"activity", string(activity),
	)
}

// Unmount cancels the countdown, e.g. on explicit logout. Unknown IDs are a
// no-op.
func (s *Supervisor) Unmount(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.dogs[id]
	if ok {
		delete(s.dogs, id)
	}
	s.mu.Unlock()
	if ok {
		e.dog.Stop()
	}
}

// Mounted reports whether a countdown exists for the session.
func (s *Supervisor) Mounted(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dogs[id]
	return ok
}

func (s *Supervisor) expire(id uuid.UUID, role profile.Role) {
	s.mu.Lock()
	delete(s.dogs, id)
	s.mu.Unlock()

	ctx := context.Background()
	if err := s.terminate(ctx, id, session.ReasonInactivity); err != nil {
		s.logger.ErrorContext(ctx, "inactivity logout failed",
			"session_id", id.String(),
			"role", string(role),
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "session expired for inactivity",
		"session_id", id.String(),
		"role", string(role),
		"log_type", "audit",
	)
	if s.onExpired != nil {
		s.onExpired(role)
	}
}
