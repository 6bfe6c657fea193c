// Package retention enforces the rolling sample window.
package retention

import (
	"context"
	"time"

	"stockstream/internal/metrics"
	"stockstream/pkg/storage"

	"go.uber.org/zap"
)

const DefaultRetention = 24 * time.Hour

type Purger struct {
	store     storage.Store
	retention time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

func NewPurger(store storage.Store, retention time.Duration, logger *zap.Logger) *Purger {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Purger{
		store:     store,
		retention: retention,
		logger:    logger.Named("retention"),
		now:       time.Now,
	}
}

// Purge deletes every sample older than now minus the retention window and
// returns how many were removed.
func (p *Purger) Purge(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)

	deleted, err := p.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("retention purge failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}

	metrics.SamplesPurgedTotal.Add(float64(deleted))
	p.logger.Info("retention purge finished", zap.Time("cutoff", cutoff), zap.Int64("deleted", deleted))
	return deleted, nil
}
