// Package aggregator derives the read-side views: price snapshots, movers,
// historical series, the dashboard summary and dashboard graphs.
package aggregator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"stockstream/internal/market"
	"stockstream/internal/market/calendar"
	"stockstream/pkg/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopMovers   = 5
	DefaultRecentLimit = 10

	fetchConcurrency = 4
)

// ChangePct returns the percentage change from previousClose to current,
// or 0 when previousClose is 0.
func ChangePct(current, previousClose float64) float64 {
	if previousClose == 0 {
		return 0
	}
	return (current - previousClose) / previousClose * 100
}

type Options struct {
	RecentLimit int
	Retention   time.Duration
}

type Aggregator struct {
	source      market.PriceSource
	store       storage.Store
	universe    *market.Universe
	hours       calendar.MarketHours
	logger      *zap.Logger
	recentLimit int
	retention   time.Duration
	now         func() time.Time
}

func New(source market.PriceSource, store storage.Store, universe *market.Universe,
	hours calendar.MarketHours, opts Options, logger *zap.Logger) *Aggregator {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &Aggregator{
		source:      source,
		store:       store,
		universe:    universe,
		hours:       hours,
		logger:      logger.Named("aggregator"),
		recentLimit: opts.RecentLimit,
		retention:   opts.Retention,
		now:         time.Now,
	}
}

type liveQuote struct {
	ok        bool
	price     float64
	changePct float64
}

// fetchQuotes requests every symbol concurrently. Results keep input order;
// unavailable or non-positive quotes come back with ok == false.
func (a *Aggregator) fetchQuotes(ctx context.Context, symbols []string) []liveQuote {
	out := make([]liveQuote, len(symbols))

	var g errgroup.Group
	g.SetLimit(fetchConcurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			q, err := a.source.GetQuote(ctx, sym)
			if err != nil {
				a.logger.Warn("quote unavailable", zap.String("symbol", sym),
					zap.Error(market.SourceUnavailable(sym, err)))
				return nil
			}
			if q == nil || !(q.LastPrice > 0) || math.IsInf(q.LastPrice, 0) {
				a.logger.Warn("quote has no usable price", zap.String("symbol", sym))
				return nil
			}
			out[i] = liveQuote{ok: true, price: q.LastPrice, changePct: ChangePct(q.LastPrice, q.PreviousClose)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// CurrentPrices returns a live snapshot of every universe symbol of type t.
// Failed symbols are omitted; ErrNoDataAvailable is returned only when all
// of them failed.
func (a *Aggregator) CurrentPrices(ctx context.Context, t storage.AssetType) ([]PriceItem, error) {
	symbols := a.universe.Symbols(t)
	quotes := a.fetchQuotes(ctx, symbols)

	items := make([]PriceItem, 0, len(symbols))
	for i, q := range quotes {
		if !q.ok {
			continue
		}
		items = append(items, PriceItem{
			Symbol:    symbols[i],
			Name:      a.universe.Name(symbols[i]),
			Price:     q.price,
			ChangePct: q.changePct,
		})
	}

	if len(items) == 0 && len(symbols) > 0 {
		return nil, fmt.Errorf("current %s prices: %w", t, market.ErrNoDataAvailable)
	}
	return items, nil
}

// TopMovers returns the n stocks with the largest absolute change. Ties keep
// universe order. n <= 0 falls back to DefaultTopMovers.
func (a *Aggregator) TopMovers(ctx context.Context, n int) ([]Mover, error) {
	if n <= 0 {
		n = DefaultTopMovers
	}

	items, err := a.CurrentPrices(ctx, storage.AssetStock)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return math.Abs(items[i].ChangePct) > math.Abs(items[j].ChangePct)
	})
	if len(items) > n {
		items = items[:n]
	}

	movers := make([]Mover, 0, len(items))
	for _, it := range items {
		movers = append(movers, Mover{Symbol: it.Symbol, Price: it.Price, ChangePct: it.ChangePct})
	}
	return movers, nil
}

// HistoricalSeries returns the close series of symbol over timeframe.
// Unknown timeframes use DefaultTimeframe.
func (a *Aggregator) HistoricalSeries(ctx context.Context, symbol, timeframe string) (Series, error) {
	_, meta := ParseTimeframe(timeframe)

	bars, err := a.source.GetHistory(ctx, symbol, meta.Interval, meta.Period)
	if err != nil {
		return Series{}, market.SourceUnavailable(symbol, err)
	}

	s := Series{
		Timestamps: make([]time.Time, 0, len(bars)),
		Prices:     make([]float64, 0, len(bars)),
	}
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			continue
		}
		s.Timestamps = append(s.Timestamps, b.Time)
		s.Prices = append(s.Prices, b.Close)
	}
	return s, nil
}

// DashboardSummary composes the live market indices with the latest stored
// samples per asset type. Each part degrades independently.
func (a *Aggregator) DashboardSummary(ctx context.Context) Summary {
	var (
		summary Summary
		g       errgroup.Group
	)

	g.Go(func() error {
		summary.MarketIndices = a.marketIndices(ctx)
		return nil
	})
	g.Go(func() error {
		summary.RecentStocks = a.recentSamples(ctx, storage.AssetStock)
		return nil
	})
	g.Go(func() error {
		summary.RecentCrypto = a.recentSamples(ctx, storage.AssetCrypto)
		return nil
	})
	_ = g.Wait()

	return summary
}

func (a *Aggregator) marketIndices(ctx context.Context) []IndexQuote {
	symbols := a.universe.Indices()
	quotes := a.fetchQuotes(ctx, symbols)
	now := a.now()

	out := make([]IndexQuote, 0, len(symbols))
	for i, q := range quotes {
		if !q.ok {
			continue
		}
		iq := IndexQuote{
			Symbol:    symbols[i],
			Name:      a.universe.Name(symbols[i]),
			Price:     q.price,
			ChangePct: q.changePct,
		}
		if a.hours != nil {
			iq.MarketOpen = a.hours.IsOpen(symbols[i], now)
		}
		out = append(out, iq)
	}
	return out
}

func (a *Aggregator) recentSamples(ctx context.Context, t storage.AssetType) []storage.PriceSample {
	since := a.now().UTC().Add(-a.retention)
	samples, err := a.store.QueryRecent(ctx, t, since, a.recentLimit, storage.Descending)
	if err != nil {
		a.logger.Warn("recent samples unavailable", zap.String("type", string(t)), zap.Error(err))
		return []storage.PriceSample{}
	}
	return samples
}

// DashboardGraphs builds, per asset type, each symbol's percentage change
// relative to its first retained sample. A failed query yields no series
// for that type; an error is returned only when every query failed.
func (a *Aggregator) DashboardGraphs(ctx context.Context) (Graphs, error) {
	now := a.now().UTC()
	since := now.Add(-a.retention)
	graphs := Graphs{GeneratedAt: now}

	var lastErr error
	failed := 0
	for _, t := range storage.AssetTypes {
		samples, err := a.store.QueryRecent(ctx, t, since, 0, storage.Ascending)
		if err != nil {
			a.logger.Warn("graph samples unavailable", zap.String("type", string(t)), zap.Error(err))
			lastErr = err
			failed++
			continue
		}

		series := a.buildSeries(t, samples)
		if t == storage.AssetCrypto {
			graphs.Crypto = series
		} else {
			graphs.Stock = series
		}
	}

	if failed == len(storage.AssetTypes) {
		return Graphs{}, fmt.Errorf("dashboard graphs: %w", lastErr)
	}
	if graphs.Stock == nil {
		graphs.Stock = []GraphSeries{}
	}
	if graphs.Crypto == nil {
		graphs.Crypto = []GraphSeries{}
	}
	return graphs, nil
}

// buildSeries groups ascending samples by symbol. Universe symbols come
// first in configured order, any others follow in first-seen order.
func (a *Aggregator) buildSeries(t storage.AssetType, samples []storage.PriceSample) []GraphSeries {
	bySymbol := make(map[string]*GraphSeries)
	base := make(map[string]float64)
	var seen []string

	for _, s := range samples {
		gs, ok := bySymbol[s.Symbol]
		if !ok {
			gs = &GraphSeries{Name: s.Symbol, X: []time.Time{}, Y: []float64{}}
			bySymbol[s.Symbol] = gs
			base[s.Symbol] = s.Price
			seen = append(seen, s.Symbol)
		}
		gs.X = append(gs.X, s.Timestamp)
		gs.Y = append(gs.Y, ChangePct(s.Price, base[s.Symbol]))
	}

	order := make([]string, 0, len(seen))
	inUniverse := make(map[string]bool)
	for _, sym := range a.universe.Symbols(t) {
		inUniverse[sym] = true
		if _, ok := bySymbol[sym]; ok {
			order = append(order, sym)
		}
	}
	for _, sym := range seen {
		if !inUniverse[sym] {
			order = append(order, sym)
		}
	}

	out := make([]GraphSeries, 0, len(order))
	for _, sym := range order {
		out = append(out, *bySymbol[sym])
	}
	return out
}
