// Package market holds the domain types shared by the collection,
// aggregation and scheduling packages.
package market

import (
	"context"
	"errors"
	"fmt"

	"stockstream/pkg/yahoo"
)

var (
	// ErrSourceUnavailable marks a failed quote or history request for one symbol.
	ErrSourceUnavailable = errors.New("price source unavailable")

	// ErrNoDataAvailable is returned when every requested symbol failed.
	ErrNoDataAvailable = errors.New("no data available")
)

// PriceSource is the external market-data capability.
type PriceSource interface {
	GetQuote(ctx context.Context, symbol string) (*yahoo.Quote, error)
	GetHistory(ctx context.Context, symbol string, interval yahoo.Interval, period yahoo.Period) ([]yahoo.Bar, error)
}

// SourceUnavailable wraps err for symbol with ErrSourceUnavailable.
func SourceUnavailable(symbol string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, symbol, err)
}
