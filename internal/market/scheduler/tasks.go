package scheduler

import (
	"context"
	"fmt"

	"stockstream/internal/market/aggregator"
	"stockstream/internal/market/collector"
	"stockstream/internal/market/graphcache"

	"go.uber.org/zap"
)

type RoundRunner interface {
	RunRound(ctx context.Context) collector.Report
}

type GraphBuilder interface {
	DashboardGraphs(ctx context.Context) (aggregator.Graphs, error)
}

// RoundNotifier is told about every finished hourly task.
type RoundNotifier interface {
	NotifyRound(report collector.Report)
}

type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// HourlyTask runs a collection round, refreshes the dashboard graphs and
// notifies subscribers. A failed refresh still notifies and is reported as
// the task error.
func HourlyTask(c RoundRunner, graphs GraphBuilder, renderer graphcache.ChartRenderer,
	notifier RoundNotifier, logger *zap.Logger) TaskFunc {
	return func(ctx context.Context) error {
		report := c.RunRound(ctx)

		var refreshErr error
		if graphs != nil && renderer != nil {
			g, err := graphs.DashboardGraphs(ctx)
			if err == nil {
				err = renderer.Render(ctx, g)
			}
			if err != nil {
				logger.Warn("dashboard graph refresh failed", zap.Error(err))
				refreshErr = fmt.Errorf("refresh dashboard graphs: %w", err)
			}
		}

		if notifier != nil {
			notifier.NotifyRound(report)
		}
		return refreshErr
	}
}

// DailyTask runs the retention purge.
func DailyTask(p Purger) TaskFunc {
	return func(ctx context.Context) error {
		_, err := p.Purge(ctx)
		return err
	}
}
