package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	pending Pending
	expires time.Time
}

// MemoryStore 单实例部署与测试用
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[int64]memoryEntry
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{now: now, entries: map[int64]memoryEntry{}}
}

func (s *MemoryStore) Await(_ context.Context, owner int64, p Pending, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[owner] = memoryEntry{pending: p, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Take(_ context.Context, owner int64) (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[owner]
	if !ok {
		return nil, nil
	}
	delete(s.entries, owner)
	if !s.now().Before(e.expires) {
		return nil, nil
	}
	p := e.pending
	return &p, nil
}

func (s *MemoryStore) Clear(_ context.Context, owner int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, owner)
	return nil
}
