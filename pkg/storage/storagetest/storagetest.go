// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend test files call Run with a factory for their store.
package storagetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"stockstream/pkg/storage"

	"golang.org/x/sync/errgroup"
)

// Factory returns an open store. Run empties it before each case.
type Factory func(t *testing.T) storage.Store

// Run executes the shared store cases against newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"QueryRecentFiltersAndOrders", testQueryRecent},
		{"QueryRecentLimit", testQueryRecentLimit},
		{"DuplicatesKept", testDuplicatesKept},
		{"PurgeRemovesExpired", testPurgeRemovesExpired},
		{"PurgeIdempotent", testPurgeIdempotent},
		{"ConcurrentInserts", testConcurrentInserts},
		{"Ping", testPing},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := newStore(t)
			reset(t, s)
			c.fn(t, s)
		})
	}
}

// base is truncated to milliseconds so every backend round-trips it exactly.
var base = time.Now().UTC().Truncate(time.Millisecond)

func reset(t *testing.T, s storage.Store) {
	t.Helper()
	if _, err := s.PurgeOlderThan(context.Background(), base.Add(100*365*24*time.Hour)); err != nil {
		t.Fatalf("reset store: %v", err)
	}
}

func insert(t *testing.T, s storage.Store, symbol string, typ storage.AssetType, price float64, ts time.Time) {
	t.Helper()
	err := s.Insert(context.Background(), storage.PriceSample{
		Symbol:    symbol,
		AssetType: typ,
		Price:     price,
		Volume:    price * 10,
		Timestamp: ts,
	})
	if err != nil {
		t.Fatalf("insert %s: %v", symbol, err)
	}
}

func testQueryRecent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	insert(t, s, "AAPL", storage.AssetStock, 100, base.Add(-3*time.Hour))
	insert(t, s, "AAPL", storage.AssetStock, 101, base.Add(-2*time.Hour))
	insert(t, s, "MSFT", storage.AssetStock, 300, base.Add(-time.Hour))
	insert(t, s, "BTC-USD", storage.AssetCrypto, 40000, base.Add(-time.Hour))
	insert(t, s, "AAPL", storage.AssetStock, 99, base.Add(-30*time.Hour))

	desc, err := s.QueryRecent(ctx, storage.AssetStock, base.Add(-24*time.Hour), 0, storage.Descending)
	if err != nil {
		t.Fatalf("query descending: %v", err)
	}
	if len(desc) != 3 {
		t.Fatalf("expected 3 stock samples in window, got %d: %+v", len(desc), desc)
	}
	if desc[0].Symbol != "MSFT" || desc[2].Price != 100 {
		t.Errorf("unexpected descending order: %+v", desc)
	}
	for _, smp := range desc {
		if smp.AssetType != storage.AssetStock {
			t.Errorf("unexpected asset type %q", smp.AssetType)
		}
	}
	if !desc[0].Timestamp.Equal(base.Add(-time.Hour)) {
		t.Errorf("timestamp round-trip: got %v want %v", desc[0].Timestamp, base.Add(-time.Hour))
	}
	if desc[0].Volume != 3000 {
		t.Errorf("volume round-trip: got %v", desc[0].Volume)
	}

	asc, err := s.QueryRecent(ctx, storage.AssetStock, base.Add(-24*time.Hour), 0, storage.Ascending)
	if err != nil {
		t.Fatalf("query ascending: %v", err)
	}
	if len(asc) != 3 || asc[0].Price != 100 || asc[2].Symbol != "MSFT" {
		t.Errorf("unexpected ascending order: %+v", asc)
	}

	crypto, err := s.QueryRecent(ctx, storage.AssetCrypto, base.Add(-24*time.Hour), 0, storage.Descending)
	if err != nil {
		t.Fatalf("query crypto: %v", err)
	}
	if len(crypto) != 1 || crypto[0].Symbol != "BTC-USD" {
		t.Errorf("unexpected crypto samples: %+v", crypto)
	}
}

func testQueryRecentLimit(t *testing.T, s storage.Store) {
	for i := 0; i < 12; i++ {
		insert(t, s, "ETH-USD", storage.AssetCrypto, float64(2000+i), base.Add(-time.Duration(12-i)*time.Minute))
	}

	got, err := s.QueryRecent(context.Background(), storage.AssetCrypto, base.Add(-time.Hour), 10, storage.Descending)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(got))
	}
	if got[0].Price != 2011 || got[9].Price != 2002 {
		t.Errorf("expected latest 10 newest first, got first=%v last=%v", got[0].Price, got[9].Price)
	}
}

func testDuplicatesKept(t *testing.T, s storage.Store) {
	ts := base.Add(-time.Minute)
	insert(t, s, "NVDA", storage.AssetStock, 900, ts)
	insert(t, s, "NVDA", storage.AssetStock, 900, ts)

	got, err := s.QueryRecent(context.Background(), storage.AssetStock, ts, 0, storage.Descending)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected duplicate samples to be kept, got %d", len(got))
	}
}

func testPurgeRemovesExpired(t *testing.T, s storage.Store) {
	ctx := context.Background()
	cutoff := base.Add(-24 * time.Hour)

	insert(t, s, "OLD", storage.AssetStock, 1, cutoff.Add(-time.Second))
	insert(t, s, "EDGE", storage.AssetStock, 2, cutoff)
	insert(t, s, "NEW", storage.AssetCrypto, 3, base)

	n, err := s.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted, got %d", n)
	}

	for _, typ := range storage.AssetTypes {
		got, err := s.QueryRecent(ctx, typ, time.Unix(0, 0).UTC(), 0, storage.Ascending)
		if err != nil {
			t.Fatalf("query %s: %v", typ, err)
		}
		for _, smp := range got {
			if smp.Timestamp.Before(cutoff) {
				t.Errorf("sample older than cutoff survived: %+v", smp)
			}
		}
	}
}

func testPurgeIdempotent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	cutoff := base.Add(-24 * time.Hour)
	insert(t, s, "OLD", storage.AssetStock, 1, cutoff.Add(-time.Hour))
	insert(t, s, "OLD", storage.AssetCrypto, 1, cutoff.Add(-2*time.Hour))

	if n, err := s.PurgeOlderThan(ctx, cutoff); err != nil || n != 2 {
		t.Fatalf("first purge: n=%d err=%v", n, err)
	}
	n, err := s.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if n != 0 {
		t.Errorf("expected second purge to delete 0, got %d", n)
	}
}

// testConcurrentInserts writes from several goroutines at once, the way a
// collection round fans out. Every insert must be stored.
func testConcurrentInserts(t *testing.T, s storage.Store) {
	const (
		writers   = 8
		perWriter = 25
	)
	ctx := context.Background()
	ts := base.Add(-time.Minute)

	var g errgroup.Group
	for w := 0; w < writers; w++ {
		g.Go(func() error {
			for i := 0; i < perWriter; i++ {
				err := s.Insert(ctx, storage.PriceSample{
					Symbol:    fmt.Sprintf("SYM%d", w),
					AssetType: storage.AssetStock,
					Price:     float64(100 + i),
					Timestamp: ts,
				})
				if err != nil {
					return fmt.Errorf("writer %d insert %d: %w", w, i, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent insert failed: %v", err)
	}

	got, err := s.QueryRecent(ctx, storage.AssetStock, ts, 0, storage.Descending)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != writers*perWriter {
		t.Errorf("expected %d samples, got %d", writers*perWriter, len(got))
	}
}

func testPing(t *testing.T, s storage.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		t.Errorf("ping: %v", err)
	}
}
