package vision

import (
	"sync"

	"GamePartner/pkg/types"
)

// Store keeps the most recent screenshots, oldest first.
type Store struct {
	mu    sync.RWMutex
	shots []types.Screenshot
	max   int
}

// NewStore creates a store holding at most limit screenshots.
func NewStore(limit int) *Store {
	if limit < 1 {
		limit = 1
	}
	return &Store{max: limit}
}

// Add appends shot and returns the screenshots evicted to stay within capacity.
// The caller owns the evicted entries and is responsible for their files.
func (s *Store) Add(shot types.Screenshot) []types.Screenshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shots = append(s.shots, shot)
	if over := len(s.shots) - s.max; over > 0 {
		evicted := make([]types.Screenshot, over)
		copy(evicted, s.shots[:over])
		s.shots = append([]types.Screenshot(nil), s.shots[over:]...)
		return evicted
	}
	return nil
}

// Recent returns up to count screenshots, most recent last.
func (s *Store) Recent(count int) []types.Screenshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if count <= 0 || len(s.shots) == 0 {
		return nil
	}
	if count > len(s.shots) {
		count = len(s.shots)
	}
	out := make([]types.Screenshot, count)
	copy(out, s.shots[len(s.shots)-count:])
	return out
}

// Latest returns the most recently added screenshot.
func (s *Store) Latest() (types.Screenshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.shots) == 0 {
		return types.Screenshot{}, false
	}
	return s.shots[len(s.shots)-1], true
}

// Len returns the number of retained screenshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shots)
}

// Reset empties the store and returns what it held.
func (s *Store) Reset() []types.Screenshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	shots := s.shots
	s.shots = nil
	return shots
}
