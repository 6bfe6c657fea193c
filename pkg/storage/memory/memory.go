package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"stockstream/pkg/storage"
)

var errClosed = errors.New("memory store closed")

// MemoryStore keeps samples in process memory. It is used by tests and by
// the "memory" storage driver for dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []storage.PriceSample
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples: make([]storage.PriceSample, 0),
	}
}

func (m *MemoryStore) Insert(ctx context.Context, s storage.PriceSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storage.Unavailable("insert sample", errClosed)
	}
	m.samples = append(m.samples, s)
	return nil
}

func (m *MemoryStore) QueryRecent(ctx context.Context, assetType storage.AssetType, since time.Time,
	limit int, order storage.SortOrder) ([]storage.PriceSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, storage.Unavailable("query recent samples", errClosed)
	}

	var out []storage.PriceSample
	for _, s := range m.samples {
		if s.AssetType == assetType && !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}

	// Stable keeps insertion order for samples of the same round.
	sort.SliceStable(out, func(i, j int) bool {
		if order == storage.Ascending {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, storage.Unavailable("purge samples", errClosed)
	}

	kept := m.samples[:0]
	var deleted int64
	for _, s := range m.samples {
		if s.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return deleted, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return storage.Unavailable("ping", errClosed)
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// All returns a copy of every stored sample in insertion order.
func (m *MemoryStore) All() []storage.PriceSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Copy to avoid race
	cp := make([]storage.PriceSample, len(m.samples))
	copy(cp, m.samples)
	return cp
}

