package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStorageUnavailable marks a failed store operation. Backends wrap their
// driver errors with it so callers can tell storage failures apart.
var ErrStorageUnavailable = errors.New("storage unavailable")

// AssetType classifies a tracked instrument.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

// AssetTypes lists every asset type in display order.
var AssetTypes = []AssetType{AssetStock, AssetCrypto}

// IsValid reports whether t is one of the known asset types.
func (t AssetType) IsValid() bool {
	return t == AssetStock || t == AssetCrypto
}

// ParseAssetType parses "stock" or "crypto".
func ParseAssetType(s string) (AssetType, error) {
	t := AssetType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid asset type: %q", s)
	}
	return t, nil
}

// SortOrder is the timestamp ordering of query results.
type SortOrder int

const (
	Descending SortOrder = iota
	Ascending
)

// PriceSample is one observation of one instrument at one instant.
// Samples are append-only; nothing ever updates one after it is written.
type PriceSample struct {
	Symbol    string    `json:"symbol"`
	AssetType AssetType `json:"type"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists price samples inside a retention window.
type Store interface {
	// Insert persists one sample.
	Insert(ctx context.Context, sample PriceSample) error

	// QueryRecent returns samples of the given type with timestamp >= since,
	// ordered by timestamp and capped at limit (limit <= 0 means no cap).
	QueryRecent(ctx context.Context, assetType AssetType, since time.Time, limit int, order SortOrder) ([]PriceSample, error)

	// PurgeOlderThan deletes all samples with timestamp < cutoff and returns
	// the number deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping checks connectivity with the backing store.
	Ping(ctx context.Context) error

	Close() error
}

// Unavailable wraps a backend error for operation op with ErrStorageUnavailable.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
