package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps in-flight and recently finished trackers. Construct one per process and inject it.
type Store struct {
	clock Clock
	mu    sync.RWMutex
	items map[string]*Tracker
}

// NewStore builds an empty job store.
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store{clock: clock, items: make(map[string]*Tracker)}
}

// Create registers a new pending tracker with a fresh identifier.
func (s *Store) Create(label string) *Tracker {
	tracker := NewTracker(uuid.NewString(), label, s.clock)
	s.mu.Lock()
	s.items[tracker.ID()] = tracker
	s.mu.Unlock()
	return tracker
}

// Get returns the tracker registered under id.
func (s *Store) Get(id string) (*Tracker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tracker, ok := s.items[id]
	return tracker, ok
}

// Purge drops terminal trackers that finished more than maxAge ago and returns how many.
func (s *Store) Purge(maxAge time.Duration) int {
	cutoff := s.clock.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, tracker := range s.items {
		if tracker.finishedBefore(cutoff) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered trackers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
