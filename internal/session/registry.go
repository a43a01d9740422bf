package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"civita/internal/sentinel"
)

// Error Contract:
// Find returns sentinel.ErrNotFound (wrapped) when the session is unknown.

// Registry holds AuthState records in memory, keyed by credential session ID.
type Registry struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]*AuthState
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[uuid.UUID]*AuthState)}
}

// Save creates or replaces the record for its session ID.
func (r *Registry) Save(state *AuthState) {
	r.mu.Lock()
	cp := *state
	r.byID[state.SessionID] = &cp
	r.mu.Unlock()
}

// Find returns a copy of the record for the given session ID.
func (r *Registry) Find(id uuid.UUID) (*AuthState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byID[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
}

// Exists reports whether a record is present for the session ID.
func (r *Registry) Exists(id uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byID[id]
	return ok
}

// MarkVerified flips the OTPVerified flag for the session.
func (r *Registry) MarkVerified(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	s.OTPVerified = true
	return nil
}

// RecordActivity updates the session's last seen time if later than current.
func (r *Registry) RecordActivity(id uuid.UUID, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byID[id]; ok && at.After(s.LastSeenAt) {
		s.LastSeenAt = at
	}
}

// Delete removes the record. Unknown IDs are a no-op so logout is idempotent.
// It reports whether a record was removed.
func (r *Registry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	return true
}

// List returns copies of all records.
func (r *Registry) List() []*AuthState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AuthState, 0, len(r.byID))
	for _, s := range r.byID {
		cp := *s
		out = append(out, &cp)
	}
	return out
}
