package graphcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockstream/config"
	"stockstream/internal/market/aggregator"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores the latest graphs as one JSON value so several
// processes can serve the same rendering. Redis failures fall back to an
// in-process copy.
type RedisCache struct {
	rdb    *redis.Client
	mem    *MemoryCache
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisCache creates a new RedisCache instance and pings the Redis server.
func NewRedisCache(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Perform a ping to ensure Redis is reachable
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisCache{
		rdb:    rdb,
		mem:    NewMemoryCache(ttl),
		key:    cfg.KeyPrefix + "dashboard",
		ttl:    ttl,
		logger: logger.Named("graphcache"),
	}, nil
}

func (r *RedisCache) Render(ctx context.Context, g aggregator.Graphs) error {
	_ = r.mem.Render(ctx, g)

	b, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("encode graphs: %w", err)
	}
	if err := r.rdb.Set(ctx, r.key, b, r.ttl).Err(); err != nil {
		r.logger.Warn("failed to store graphs in redis, memory copy kept", zap.Error(err))
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

func (r *RedisCache) Load(ctx context.Context) (aggregator.Graphs, error) {
	b, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return aggregator.Graphs{}, ErrMiss
	}
	if err != nil {
		r.logger.Warn("redis unavailable, serving memory copy", zap.Error(err))
		return r.mem.Load(ctx)
	}

	var g aggregator.Graphs
	if err := json.Unmarshal(b, &g); err != nil {
		return aggregator.Graphs{}, fmt.Errorf("decode graphs: %w", err)
	}
	return g, nil
}

// Close shuts down the Redis client.
func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
