package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockstream/config"
	"stockstream/internal/market"
	"stockstream/internal/market/aggregator"
	"stockstream/internal/market/calendar"
	"stockstream/internal/market/collector"
	"stockstream/internal/market/graphcache"
	"stockstream/internal/market/retention"
	"stockstream/internal/market/scheduler"
	"stockstream/internal/server"
	"stockstream/logger"
	"stockstream/pkg/storage"
	"stockstream/pkg/storage/memory"
	"stockstream/pkg/storage/mongo"
	"stockstream/pkg/storage/postgres"
	"stockstream/pkg/storage/sqlite"
	"stockstream/pkg/yahoo"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(start(os.Args[1:]))
}

// start runs the service and returns the process exit code. Deferred
// cleanup, including the final log flush, runs before main exits.
func start(args []string) int {
	fs := flag.NewFlagSet("stockstream", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 1
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("stockstream failed", zap.Error(err))
		return 1
	}
	log.Info("stockstream stopped")
	return 0
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close storage", zap.Error(err))
		}
	}()

	source := yahoo.NewClient(cfg.Yahoo.BaseURL, cfg.Yahoo.Timeout,
		yahoo.WithMaxRetries(cfg.Yahoo.MaxRetries),
		yahoo.WithUserAgent(cfg.Yahoo.UserAgent),
	)
	universe := market.NewUniverse(cfg.Universe)

	coll := collector.New(source, store, universe, cfg.Collector, log)
	purger := retention.NewPurger(store, cfg.Scheduler.Retention, log)
	agg := aggregator.New(source, store, universe, calendar.New(), aggregator.Options{
		RecentLimit: cfg.Scheduler.RecentLimit,
		Retention:   cfg.Scheduler.Retention,
	}, log)

	cache := openGraphCache(ctx, cfg.GraphCache, log)
	defer cache.Close()

	hub := server.NewHub(log)
	srv := server.New(cfg.Server, cfg.Metrics, agg, store, cache, hub, log)

	sched, err := scheduler.New(cfg.Scheduler,
		scheduler.HourlyTask(coll, agg, cache, hub, log),
		scheduler.DailyTask(purger),
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	log.Info("stockstream starting",
		zap.String("env", cfg.App.Environment),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("graph_cache", cfg.GraphCache.Driver),
		zap.Int("instruments", len(universe.Instruments())),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}

// openStore builds the configured storage backend.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	switch cfg.Storage.Driver {
	case "postgres":
		return postgres.Open(openCtx, cfg.Storage.Postgres, cfg.App.Environment, log)
	case "sqlite":
		return sqlite.Open(openCtx, cfg.Storage.SQLite.Path, log)
	case "mongo":
		return mongo.Open(openCtx, cfg.Storage.Mongo)
	case "memory":
		log.Warn("using in-memory storage, samples are lost on restart")
		return memory.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Storage.Driver)
	}
}

// openGraphCache falls back to the in-process cache when Redis is unreachable.
func openGraphCache(ctx context.Context, cfg config.GraphCacheConfig, log *zap.Logger) graphcache.Cache {
	if cfg.Driver != "redis" {
		return graphcache.NewMemoryCache(cfg.TTL)
	}

	cache, err := graphcache.NewRedisCache(ctx, cfg.Redis, cfg.TTL, log)
	if err != nil {
		log.Warn("redis unavailable, using in-memory graph cache", zap.Error(err))
		return graphcache.NewMemoryCache(cfg.TTL)
	}
	return cache
}
