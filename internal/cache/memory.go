package cache

import (
	"context"
	"sync"
	"time"
)

// Store is implemented by every processed-URL cache
type Store interface {
	IsProcessed(ctx context.Context, hash string) (bool, error)
	MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error
	ClearProcessed(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*RedisClient)(nil)
	_ Store = (*MemoryCache)(nil)
)

// MemoryCache is an in-process Store used when Redis is not configured
type MemoryCache struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (m *MemoryCache) Close() error {
	return nil
}

func (m *MemoryCache) IsProcessed(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.expires[hash]
	if !ok {
		return false, nil
	}
	if !exp.IsZero() && !m.now().Before(exp) {
		delete(m.expires, hash)
		return false, nil
	}
	return true, nil
}

// MarkProcessed stores hash; a non-positive ttl never expires
func (m *MemoryCache) MarkProcessed(ctx context.Context, hash string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.expires[hash] = exp
	return nil
}

func (m *MemoryCache) ClearProcessed(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expires = make(map[string]time.Time)
	return nil
}
