package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockstream/pkg/storage"
	"stockstream/pkg/storage/memory"

	"go.uber.org/zap"
)

func seed(t *testing.T, store storage.Store, now time.Time, ages ...time.Duration) {
	t.Helper()
	for i, age := range ages {
		err := store.Insert(context.Background(), storage.PriceSample{
			Symbol:    "AAPL",
			AssetType: storage.AssetStock,
			Price:     100 + float64(i),
			Timestamp: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

// go test -v --run ^TestPurgeRemovesOnlyExpired$
func TestPurgeRemovesOnlyExpired(t *testing.T) {
	now := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	store := memory.NewMemoryStore()
	seed(t, store, now, 48*time.Hour, 25*time.Hour, 24*time.Hour, time.Hour)

	p := NewPurger(store, 24*time.Hour, zap.NewNop())
	p.now = func() time.Time { return now }

	deleted, err := p.Purge(context.Background())
	if err != nil {
		t.Fatalf("purge failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	cutoff := now.Add(-24 * time.Hour)
	for _, s := range store.All() {
		if s.Timestamp.Before(cutoff) {
			t.Errorf("expired sample survived: %+v", s)
		}
	}
}

// go test -v --run ^TestPurgeTwiceDeletesNothingSecondTime$
func TestPurgeTwiceDeletesNothingSecondTime(t *testing.T) {
	now := time.Now().UTC()
	store := memory.NewMemoryStore()
	seed(t, store, now, 30*time.Hour, 2*time.Hour)

	p := NewPurger(store, 0, zap.NewNop())
	p.now = func() time.Time { return now }

	if _, err := p.Purge(context.Background()); err != nil {
		t.Fatalf("first purge failed: %v", err)
	}
	deleted, err := p.Purge(context.Background())
	if err != nil {
		t.Fatalf("second purge failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("second purge deleted %d, want 0", deleted)
	}
}

// go test -v --run ^TestPurgeStoreFailure$
func TestPurgeStoreFailure(t *testing.T) {
	store := memory.NewMemoryStore()
	store.Close()

	p := NewPurger(store, time.Hour, zap.NewNop())
	if _, err := p.Purge(context.Background()); !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
