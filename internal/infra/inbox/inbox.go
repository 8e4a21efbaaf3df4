package inbox

import (
	"context"
	"sync"
)

// Store deduplicates externally delivered events. MarkSeen returns true the
// first time an id is observed; replays return false and must be dropped.
type Store interface {
	MarkSeen(ctx context.Context, id string) (bool, error)
}

type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

func (s *MemoryStore) MarkSeen(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
