// Package sqlite stores price samples in a single-file SQLite database
// through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stockstream/pkg/storage"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS stock_crypto_prices (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol     TEXT    NOT NULL,
	asset_type TEXT    NOT NULL,
	price      REAL    NOT NULL,
	volume     REAL    NOT NULL DEFAULT 0,
	timestamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_prices_symbol     ON stock_crypto_prices (symbol);
CREATE INDEX IF NOT EXISTS idx_prices_timestamp  ON stock_crypto_prices (timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_prices_asset_type ON stock_crypto_prices (asset_type);
`

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

var _ storage.Store = (*Store)(nil)

// pragmas are applied by the driver to every pooled connection.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// dsn appends the connection pragmas to path. ":memory:" is left alone.
func dsn(path string) string {
	if path == ":memory:" {
		return path
	}

	params := make([]string, 0, len(pragmas))
	for _, p := range pragmas {
		params = append(params, "_pragma="+p)
	}

	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storage.Unavailable("ping", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log = log.Named("sqlite")
	log.Info("sqlite store opened", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

func (s *Store) Insert(ctx context.Context, smp storage.PriceSample) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stock_crypto_prices (symbol, asset_type, price, volume, timestamp) VALUES (?, ?, ?, ?, ?)`,
		smp.Symbol, string(smp.AssetType), smp.Price, smp.Volume, smp.Timestamp.UnixNano(),
	)
	if err != nil {
		return storage.Unavailable("insert sample", err)
	}
	return nil
}

func (s *Store) QueryRecent(ctx context.Context, assetType storage.AssetType, since time.Time,
	limit int, order storage.SortOrder) ([]storage.PriceSample, error) {
	direction := "DESC"
	if order == storage.Ascending {
		direction = "ASC"
	}

	query := `SELECT symbol, asset_type, price, volume, timestamp FROM stock_crypto_prices
		WHERE asset_type = ? AND timestamp >= ?
		ORDER BY timestamp ` + direction + `, id ASC`
	args := []any{string(assetType), since.UnixNano()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Unavailable("query recent samples", err)
	}
	defer rows.Close()

	out := make([]storage.PriceSample, 0)
	for rows.Next() {
		var (
			smp    storage.PriceSample
			typ    string
			tsNano int64
		)
		if err := rows.Scan(&smp.Symbol, &typ, &smp.Price, &smp.Volume, &tsNano); err != nil {
			return nil, storage.Unavailable("scan sample", err)
		}
		smp.AssetType = storage.AssetType(typ)
		smp.Timestamp = time.Unix(0, tsNano).UTC()
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("iterate samples", err)
	}
	return out, nil
}

func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stock_crypto_prices WHERE timestamp < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, storage.Unavailable("purge samples", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storage.Unavailable("purge samples", err)
	}
	return n, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return storage.Unavailable("ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error {
	return s.db.Close()
}
