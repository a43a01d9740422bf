package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultCapacity = 1024

// MemoryLog is a bounded in-memory audit log. When full, the oldest events
// are dropped.
type MemoryLog struct {
	mu       sync.Mutex
	events   []Event
	capacity int
}

// NewMemoryLog constructs a MemoryLog with the given capacity.
// Zero or negative capacity falls back to the default.
func NewMemoryLog(capacity int) *MemoryLog {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &MemoryLog{capacity: capacity}
}

// Emit appends the event, assigning ID and timestamp when unset.
func (l *MemoryLog) Emit(_ context.Context, event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}
	l.events = append(l.events, event)
	if len(l.events) > l.capacity {
		l.events = l.events[len(l.events)-l.capacity:]
	}
	return nil
}

// Recent returns up to n most recent events, newest last.
func (l *MemoryLog) Recent(n int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]Event, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}
