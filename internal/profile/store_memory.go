package profile

import (
	"context"
	"fmt"
	"sync"

	"civita/internal/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound (wrapped) when the requested profile does not exist
// - Return nil for successful operations
// - Mutations notify every active watcher for the affected uid

// InMemoryStore stores profiles in memory and supports live subscriptions,
// mirroring the push semantics of a hosted document store.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	watchers map[string]map[int]chan Snapshot
	nextID   int
}

// NewInMemoryStore constructs an empty profile store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]*Profile),
		watchers: make(map[string]map[int]chan Snapshot),
	}
}

// Save creates or replaces the profile for its uid.
func (s *InMemoryStore) Save(_ context.Context, p *Profile) error {
	s.mu.Lock()
	cp := *p
	s.profiles[p.UID] = &cp
	s.notifyLocked(p.UID)
	s.mu.Unlock()
	return nil
}

// FindByUID returns a copy of the profile for uid.
func (s *InMemoryStore) FindByUID(_ context.Context, uid string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[uid]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
}

// Snapshot returns the current observation for uid: value or none.
func (s *InMemoryStore) Snapshot(_ context.Context, uid string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(uid)
}

func (s *InMemoryStore) snapshotLocked(uid string) Snapshot {
	if p, ok := s.profiles[uid]; ok {
		cp := *p
		return Value(&cp)
	}
	return None()
}

// SetStatus updates the approval status for uid.
func (s *InMemoryStore) SetStatus(_ context.Context, uid string, status Status) error {
	return s.mutate(uid, func(p *Profile) { p.Status = status })
}

// SetTheme updates the display preference for uid.
func (s *InMemoryStore) SetTheme(_ context.Context, uid string, theme Theme) error {
	return s.mutate(uid, func(p *Profile) { p.Theme = theme })
}

// SetPhotoURL updates the profile photo for uid.
func (s *InMemoryStore) SetPhotoURL(_ context.Context, uid string, url string) error {
	return s.mutate(uid, func(p *Profile) { p.PhotoURL = url })
}

func (s *InMemoryStore) mutate(uid string, fn func(*Profile)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[uid]
	if !ok {
		return fmt.Errorf("profile not found: %w", sentinel.ErrNotFound)
	}
	fn(p)
	s.notifyLocked(uid)
	return nil
}

// ListAll returns copies of every profile, for the admin back office.
func (s *InMemoryStore) ListAll(_ context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// Watch subscribes to profile changes for uid. The current snapshot is
// delivered immediately, then one snapshot per change until cancel is called
// or ctx is done. Slow consumers miss intermediate snapshots rather than
// blocking writers.
func (s *InMemoryStore) Watch(ctx context.Context, uid string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watchers[uid] == nil {
		s.watchers[uid] = make(map[int]chan Snapshot)
	}
	s.watchers[uid][id] = ch
	initial := s.snapshotLocked(uid)
	s.mu.Unlock()

	ch <- initial

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[uid], id)
			s.mu.Unlock()
			close(ch)
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return ch, cancel
}

func (s *InMemoryStore) notifyLocked(uid string) {
	snap := s.snapshotLocked(uid)
	for _, ch := range s.watchers[uid] {
		select {
		case ch <- snap:
		default:
		}
	}
}
