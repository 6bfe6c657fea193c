// Package graphcache holds the most recently rendered dashboard graphs so
// the HTTP layer does not recompute them on every request.
package graphcache

import (
	"context"
	"errors"

	"stockstream/internal/market/aggregator"
)

// ErrMiss is returned by Load when no fresh graphs are cached.
var ErrMiss = errors.New("graph cache miss")

// ChartRenderer publishes a freshly computed set of dashboard graphs.
type ChartRenderer interface {
	Render(ctx context.Context, graphs aggregator.Graphs) error
}

// Cache is a ChartRenderer whose output can be read back.
type Cache interface {
	ChartRenderer
	Load(ctx context.Context) (aggregator.Graphs, error)
	Close() error
}
