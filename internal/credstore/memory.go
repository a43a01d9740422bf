package credstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"civita/internal/token"
	"civita/pkg/email"
	"civita/pkg/faults"
)

const (
	minPasswordLength = 6

	// failedSignInCap mirrors the hosted provider's throttling: after this
	// many consecutive failures for one account, sign-in returns
	// too-many-requests until a success clears the counter.
	failedSignInCap = 10
)

type account struct {
	uid          string
	email        string
	passwordHash []byte
	disabled     bool
	failures     int
}

// MemoryStore is an in-process credential backend with bcrypt-hashed
// passwords and JWT-backed session tokens.
type MemoryStore struct {
	mu       sync.Mutex
	byEmail  map[string]*account
	sessions map[uuid.UUID]*Session
	tokens   *token.Service
	nextSub  int
	subs     map[int]func(*Session)
}

// NewMemoryStore constructs an empty credential store. The token service is
// used to mint the session token embedded in each issued Session.
func NewMemoryStore(tokens *token.Service) *MemoryStore {
	return &MemoryStore{
		byEmail:  make(map[string]*account),
		sessions: make(map[uuid.UUID]*Session),
		tokens:   tokens,
		subs:     make(map[int]func(*Session)),
	}
}

// SignUp registers a new account and issues a session for it.
func (s *MemoryStore) SignUp(_ context.Context, addr, password string) (*Session, error) {
	addr = normalize(addr)
	if !email.IsValid(addr) {
		return nil, newError(faults.BackendInvalidEmail, "badly formatted email address")
	}
	if len(password) < minPasswordLength {
		return nil, newError(faults.BackendWeakPassword, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, newError("internal", "failed to hash password")
	}

	s.mu.Lock()
	if _, exists := s.byEmail[addr]; exists {
		s.mu.Unlock()
		return nil, newError(faults.BackendEmailAlreadyInUse, "email already in use")
	}
	acct := &account{
		uid:          uuid.New().String(),
		email:        addr,
		passwordHash: hash,
	}
	s.byEmail[addr] = acct
	s.mu.Unlock()

	return s.issueSession(acct)
}

// SignIn validates the password and issues a session.
func (s *MemoryStore) SignIn(_ context.Context, addr, password string) (*Session, error) {
	addr = normalize(addr)
	if !email.IsValid(addr) {
		return nil, newError(faults.BackendInvalidEmail, "badly formatted email address")
	}

	s.mu.Lock()
	acct, ok := s.byEmail[addr]
	if !ok {
		s.mu.Unlock()
		return nil, newError(faults.BackendUserNotFound, "no account for this email")
	}
	if acct.disabled {
		s.mu.Unlock()
		return nil, newError(faults.BackendUserDisabled, "account disabled")
	}
	if acct.failures >= failedSignInCap {
		s.mu.Unlock()
		return nil, newError(faults.BackendTooManyRequests, "too many failed sign-in attempts")
	}
	s.mu.Unlock()

	if err := bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)); err != nil {
		s.mu.Lock()
		acct.failures++
		s.mu.Unlock()
		return nil, newError(faults.BackendWrongPassword, "wrong password")
	}

	s.mu.Lock()
	acct.failures = 0
	s.mu.Unlock()

	return s.issueSession(acct)
}

// SignOut destroys the session and notifies auth-state subscribers.
// Unknown session IDs are a no-op so logout stays idempotent.
func (s *MemoryStore) SignOut(_ context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	_, existed := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	if existed {
		for _, fn := range subs {
			fn(nil)
		}
	}
	return nil
}

// FindSession returns the live session for the given ID, if any.
func (s *MemoryStore) FindSession(sessionID uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	cp := *sess
	return &cp, true
}

// OnAuthStateChanged registers a callback for sign-in/sign-out transitions.
func (s *MemoryStore) OnAuthStateChanged(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Disable marks an account disabled; subsequent sign-ins fail with the
// user-disabled backend code.
func (s *MemoryStore) Disable(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.byEmail[normalize(addr)]; ok {
		acct.disabled = true
	}
}

func (s *MemoryStore) issueSession(acct *account) (*Session, error) {
	id := uuid.New()
	signed, err := s.tokens.Mint(id, acct.uid, acct.email)
	if err != nil {
		return nil, newError("internal", "failed to mint session token")
	}
	sess := &Session{
		ID:        id,
		UID:       acct.uid,
		Email:     acct.email,
		Token:     signed,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.sessions[id] = sess
	subs := s.snapshotSubsLocked()
	s.mu.Unlock()

	cp := *sess
	for _, fn := range subs {
		fn(&cp)
	}
	return &cp, nil
}

func (s *MemoryStore) snapshotSubsLocked() []func(*Session) {
	out := make([]func(*Session), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
