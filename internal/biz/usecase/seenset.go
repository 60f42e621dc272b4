package usecase

import "sync"

// SeenSet is a bounded in-process guard against re-observed message IDs.
// When the set exceeds its capacity it is cleared outright and reseeded
// with the current ID; it is not an LRU.
//
// This is only a fast local pre-filter. The storage-backed claim is the
// authoritative duplicate guard across processes.
type SeenSet struct {
	mu       sync.Mutex
	capacity int
	ids      map[string]struct{}
}

// NewSeenSet creates a seen-set with the given capacity
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = 1000
	}
	return &SeenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}),
	}
}

// MarkSeen records the ID and reports whether it was newly seen.
// Returns false if the ID was already present.
func (s *SeenSet) MarkSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return false
	}
	if len(s.ids) >= s.capacity {
		s.ids = make(map[string]struct{})
	}
	s.ids[id] = struct{}{}
	return true
}
