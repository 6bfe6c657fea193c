// Package scheduler drives the recurring work: the hourly collection task
// and the daily retention purge.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"stockstream/config"
	"stockstream/internal/metrics"

	"go.uber.org/zap"
)

// TaskFunc is one unit of scheduled work.
type TaskFunc func(ctx context.Context) error

// TaskError wraps a failed or panicking task run.
type TaskError struct {
	Task  string
	Err   error
	Panic any
}

func (e *TaskError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("task %s panicked: %v", e.Task, e.Panic)
	}
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

const (
	TaskHourly = "hourly"
	TaskDaily  = "daily"
)

type Scheduler struct {
	hourly TaskFunc
	daily  TaskFunc

	pollInterval time.Duration
	hourlyMinute int
	dailyHour    int
	dailyMinute  int

	clock  Clock
	logger *zap.Logger
}

type Option func(*Scheduler)

func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

func New(cfg config.SchedulerConfig, hourly, daily TaskFunc, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	hour, minute, err := cfg.DailyClock()
	if err != nil {
		return nil, err
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = time.Minute
	}

	s := &Scheduler{
		hourly:       hourly,
		daily:        daily,
		pollInterval: poll,
		hourlyMinute: cfg.HourlyMinute,
		dailyHour:    hour,
		dailyMinute:  minute,
		clock:        SystemClock,
		logger:       logger.Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// hourlySlot returns the most recent hourly due time at or before t.
func (s *Scheduler) hourlySlot(t time.Time) time.Time {
	slot := t.Truncate(time.Hour).Add(time.Duration(s.hourlyMinute) * time.Minute)
	if slot.After(t) {
		slot = slot.Add(-time.Hour)
	}
	return slot
}

// dailySlot returns the most recent daily due time at or before t.
func (s *Scheduler) dailySlot(t time.Time) time.Time {
	y, m, d := t.Date()
	slot := time.Date(y, m, d, s.dailyHour, s.dailyMinute, 0, 0, time.UTC)
	if slot.After(t) {
		slot = slot.AddDate(0, 0, -1)
	}
	return slot
}

// Run executes the hourly task once immediately, then polls for due tasks
// until ctx is cancelled. Task failures never stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	now := s.clock.Now().UTC()
	lastHourly := s.hourlySlot(now)
	lastDaily := s.dailySlot(now)

	s.logger.Info("scheduler started",
		zap.Duration("poll_interval", s.pollInterval),
		zap.Int("hourly_minute", s.hourlyMinute),
		zap.String("daily_at", fmt.Sprintf("%02d:%02d", s.dailyHour, s.dailyMinute)),
	)

	// Run immediately once at startup
	s.runTask(ctx, TaskHourly, s.hourly)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-s.clock.After(s.pollInterval):
		}

		now = s.clock.Now().UTC()

		if slot := s.hourlySlot(now); slot.After(lastHourly) {
			lastHourly = slot
			s.runTask(ctx, TaskHourly, s.hourly)
		}
		if slot := s.dailySlot(now); slot.After(lastDaily) {
			lastDaily = slot
			s.runTask(ctx, TaskDaily, s.daily)
		}
	}
}

// runTask runs fn synchronously, converting errors and panics to TaskError.
func (s *Scheduler) runTask(ctx context.Context, name string, fn TaskFunc) (taskErr error) {
	if fn == nil {
		return nil
	}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			taskErr = &TaskError{Task: name, Panic: r}
		}
		status := "ok"
		if taskErr != nil {
			status = "error"
			s.logger.Error("task failed", zap.String("task", name), zap.Error(taskErr))
		} else {
			s.logger.Info("task finished", zap.String("task", name), zap.Duration("elapsed", time.Since(started)))
		}
		metrics.TaskRunsTotal.WithLabelValues(name, status).Inc()
	}()

	if err := fn(ctx); err != nil {
		return &TaskError{Task: name, Err: err}
	}
	return nil
}
