package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"stockstream/pkg/storage"
	"stockstream/pkg/storage/storagetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "prices.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// go test -v --run ^TestSQLiteStore$
func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return openTestStore(t) })
}

// go test -v --run ^TestSQLiteInMemory$
func TestSQLiteInMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	if err := s.Insert(ctx, storage.PriceSample{Symbol: "SOL-USD", AssetType: storage.AssetCrypto, Price: 150, Timestamp: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.QueryRecent(ctx, storage.AssetCrypto, now.Add(-time.Minute), 0, storage.Descending)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || !got[0].Timestamp.Equal(now) {
		t.Errorf("unexpected samples: %+v", got)
	}
}

// go test -v --run ^TestSQLiteReopenKeepsData$
func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.db")
	ctx := context.Background()
	now := time.Now().UTC()

	s, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := s.Insert(ctx, storage.PriceSample{Symbol: "AAPL", AssetType: storage.AssetStock, Price: 190, Timestamp: now}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	s, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer s.Close()

	got, err := s.QueryRecent(ctx, storage.AssetStock, now.Add(-time.Hour), 0, storage.Ascending)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].Price != 190 {
		t.Errorf("expected sample to survive reopen, got %+v", got)
	}
}

// go test -v --run ^TestSQLiteClosedIsUnavailable$
func TestSQLiteClosedIsUnavailable(t *testing.T) {
	s := openTestStore(t)
	s.Close()

	_, err := s.QueryRecent(context.Background(), storage.AssetStock, time.Now(), 0, storage.Descending)
	if !errors.Is(err, storage.ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

// go test -v --run ^TestDSN$
func TestDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{":memory:", ":memory:"},
		{"prices.db", "file:prices.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"},
		{"file:prices.db?cache=shared", "file:prices.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"},
	}
	for _, tt := range tests {
		if got := dsn(tt.in); got != tt.want {
			t.Errorf("dsn(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// go test -v --run ^TestSQLiteBusyTimeoutOnEveryConnection$
func TestSQLiteBusyTimeoutOnEveryConnection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Hold several connections at once so the pool has to open new ones.
	var conns []*sql.Conn
	for i := 0; i < 4; i++ {
		c, err := s.db.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		conns = append(conns, c)
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i, c := range conns {
		var timeout int
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d: read busy_timeout: %v", i, err)
		}
		if timeout != 5000 {
			t.Errorf("conn %d: busy_timeout = %d, want 5000", i, timeout)
		}
	}
}
