package otp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"civita/internal/platform/clock"
	"civita/internal/sentinel"
)

const (
	defaultChallengeTTL = 5 * time.Minute
	defaultMaxAttempts  = 5
	defaultSweepEvery   = time.Minute
)

// Challenge is one ephemeral, in-memory login attempt awaiting its code.
// The code never leaves the registry after issuance; verification is an
// exact string comparison inside Verify.
type Challenge struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	UID       string
	Email     string
	code      string
	Attempts  int
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Registry holds pending challenges keyed by challenge ID. Challenges expire
// after a TTL and admit a bounded number of verification attempts.
type Registry struct {
	mu          sync.Mutex
	byID        map[uuid.UUID]*Challenge
	ttl         time.Duration
	maxAttempts int
	sweepEvery  time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithTTL overrides the challenge time-to-live when greater than zero.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithMaxAttempts overrides the verification attempt cap when greater than zero.
func WithMaxAttempts(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithClock overrides the clock, for tests.
func WithClock(c clock.Clock) RegistryOption {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithSweepInterval overrides the sweeper interval when greater than zero.
func WithSweepInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sweepEvery = d
		}
	}
}

// WithLogger overrides the logger used by the sweeper.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry constructs an empty challenge registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byID:        make(map[uuid.UUID]*Challenge),
		ttl:         defaultChallengeTTL,
		maxAttempts: defaultMaxAttempts,
		sweepEvery:  defaultSweepEvery,
		clock:       clock.System(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue records a new challenge for the given session identity and code.
func (r *Registry) Issue(sessionID uuid.UUID, uid, email, code string) *Challenge {
	now := r.clock.Now()
	c := &Challenge{
		ID:        uuid.New(),
		SessionID: sessionID,
		UID:       uid,
		Email:     email,
		code:      code,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
	}
	r.mu.Lock()
	r.byID[c.ID] = c
	r.mu.Unlock()
	cp := *c
	return &cp
}

// Verify compares input against the issued code.
//   - On match the challenge is consumed and its copy returned with nil error.
//   - On mismatch the attempt counter advances; once the cap is reached the
//     challenge is dropped and sentinel.ErrExhausted is returned.
//   - Expired challenges are dropped with sentinel.ErrExpired; unknown IDs
//     return sentinel.ErrNotFound.
//
// On ErrExhausted and ErrExpired the dropped challenge is returned alongside
// the error so the caller can tear down the session it belonged to.
func (r *Registry) Verify(id uuid.UUID, input string) (*Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("challenge not found: %w", sentinel.ErrNotFound)
	}
	if r.clock.Now().After(c.ExpiresAt) {
		delete(r.byID, id)
		cp := *c
		return &cp, fmt.Errorf("challenge expired: %w", sentinel.ErrExpired)
	}

	if input != c.code {
		c.Attempts++
		if c.Attempts >= r.maxAttempts {
			delete(r.byID, id)
			cp := *c
			return &cp, fmt.Errorf("attempt limit reached: %w", sentinel.ErrExhausted)
		}
		return nil, fmt.Errorf("code mismatch: %w", sentinel.ErrInvalidInput)
	}

	delete(r.byID, id)
	cp := *c
	return &cp, nil
}

// Discard drops a challenge, e.g. on back-to-login. Unknown IDs are a no-op
// so cancel stays idempotent. It returns the dropped challenge, if any.
func (r *Registry) Discard(id uuid.UUID) *Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	cp := *c
	return &cp
}

// Find returns a copy of a pending challenge without consuming it.
func (r *Registry) Find(id uuid.UUID) (*Challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Sweep removes expired challenges and returns how many were dropped.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	dropped := 0
	for id, c := range r.byID {
		if now.After(c.ExpiresAt) {
			delete(r.byID, id)
			dropped++
		}
	}
	return dropped
}

// Start sweeps expired challenges periodically until ctx is cancelled.
func (r *Registry) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if dropped := r.Sweep(r.clock.Now()); dropped > 0 {
				r.logger.InfoContext(ctx, "swept expired otp challenges", "dropped", dropped)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
