// Package collector runs collection rounds: one quote per universe symbol,
// normalized into a price sample and written to the store.
package collector

import (
	"context"
	"math"
	"time"

	"stockstream/config"
	"stockstream/internal/market"
	"stockstream/internal/metrics"
	"stockstream/pkg/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeInserted
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeInserted:
		return "inserted"
	case outcomeFailed:
		return "failed"
	}
	return "skipped"
}

// Report summarizes one round. It is informational only.
type Report struct {
	RoundID       string        `json:"round_id"`
	Timestamp     time.Time     `json:"timestamp"`
	Inserted      int           `json:"inserted"`
	Skipped       int           `json:"skipped"`
	FailedInserts int           `json:"failed_inserts"`
	Duration      time.Duration `json:"duration"`
}

type Collector struct {
	source      market.PriceSource
	store       storage.Store
	universe    *market.Universe
	logger      *zap.Logger
	concurrency int
	timeout     time.Duration
	now         func() time.Time
}

func New(source market.PriceSource, store storage.Store, universe *market.Universe,
	cfg config.CollectorConfig, logger *zap.Logger) *Collector {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Collector{
		source:      source,
		store:       store,
		universe:    universe,
		logger:      logger.Named("collector"),
		concurrency: concurrency,
		timeout:     timeout,
		now:         time.Now,
	}
}

// RunRound collects every universe symbol once. All samples of the round
// share the timestamp captured before fan-out. Per-symbol failures are
// logged and counted; the round itself never fails.
func (c *Collector) RunRound(ctx context.Context) Report {
	started := time.Now()
	report := Report{
		RoundID:   uuid.NewString(),
		Timestamp: c.now().UTC(),
	}
	log := c.logger.With(zap.String("round_id", report.RoundID))

	instruments := c.universe.Instruments()
	outcomes := make([]outcome, len(instruments))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, in := range instruments {
		g.Go(func() error {
			outcomes[i] = c.collectOne(ctx, log, in, report.Timestamp)
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		switch o {
		case outcomeInserted:
			report.Inserted++
		case outcomeFailed:
			report.FailedInserts++
		default:
			report.Skipped++
		}
		metrics.SamplesTotal.WithLabelValues(string(instruments[i].AssetType), o.String()).Inc()
	}

	report.Duration = time.Since(started)
	metrics.RoundDuration.Observe(report.Duration.Seconds())

	log.Info("collection round finished",
		zap.Time("timestamp", report.Timestamp),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed_inserts", report.FailedInserts),
		zap.Duration("duration", report.Duration),
	)
	return report
}

func (c *Collector) collectOne(ctx context.Context, log *zap.Logger, in market.Instrument, ts time.Time) outcome {
	log = log.With(zap.String("symbol", in.Symbol), zap.String("type", string(in.AssetType)))

	// Context with timeout for safety
	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	quote, err := c.source.GetQuote(fetchCtx, in.Symbol)
	cancel()
	if err != nil {
		log.Warn("failed to fetch quote", zap.Error(market.SourceUnavailable(in.Symbol, err)))
		return outcomeSkipped
	}
	if quote == nil || !(quote.LastPrice > 0) || math.IsInf(quote.LastPrice, 0) {
		log.Warn("no usable price, skipping symbol")
		return outcomeSkipped
	}

	volume := quote.Volume
	if math.IsNaN(volume) || volume < 0 {
		volume = 0
	}

	sample := storage.PriceSample{
		Symbol:    in.Symbol,
		AssetType: in.AssetType,
		Price:     quote.LastPrice,
		Volume:    volume,
		Timestamp: ts,
	}

	// context for DB insert (short timeout)
	dbCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err = c.store.Insert(dbCtx, sample)
	cancel()
	if err != nil {
		log.Warn("failed to insert sample", zap.Error(err))
		return outcomeFailed
	}

	log.Debug("sample stored", zap.Float64("price", sample.Price))
	return outcomeInserted
}
