package graphcache

import (
	"context"
	"sync"
	"time"

	"stockstream/internal/market/aggregator"
)

// MemoryCache keeps the latest graphs in process memory.
type MemoryCache struct {
	mu       sync.RWMutex
	graphs   *aggregator.Graphs
	storedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryCache returns a cache whose entries expire after ttl (0 = never).
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (m *MemoryCache) Render(ctx context.Context, g aggregator.Graphs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs = &g
	m.storedAt = m.now()
	return nil
}

func (m *MemoryCache) Load(ctx context.Context) (aggregator.Graphs, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.graphs == nil {
		return aggregator.Graphs{}, ErrMiss
	}
	if m.ttl > 0 && m.now().Sub(m.storedAt) > m.ttl {
		return aggregator.Graphs{}, ErrMiss
	}
	return *m.graphs, nil
}

func (m *MemoryCache) Close() error { return nil }
