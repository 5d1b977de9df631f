package mem

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// TTLCache is the in-process Cache used when redis is not configured.
type TTLCache struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

func NewTTLCache() *TTLCache {
	return &TTLCache{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *TTLCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.data, key) // cleanup expired
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *TTLCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
