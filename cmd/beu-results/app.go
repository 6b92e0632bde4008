package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/beu-results/pkg/batch"
	"github.com/Sternrassler/beu-results/pkg/cache"
	"github.com/Sternrassler/beu-results/pkg/client"
	"github.com/Sternrassler/beu-results/pkg/config"
	"github.com/Sternrassler/beu-results/pkg/logging"
	"github.com/Sternrassler/beu-results/pkg/parser"
	"github.com/Sternrassler/beu-results/pkg/peer"
	"github.com/Sternrassler/beu-results/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds the components shared by the serve and fetch commands.
type app struct {
	cfg          config.Config
	redis        *redis.Client
	orchestrator *batch.Orchestrator
	aggregator   *batch.Aggregator
	logger       zerolog.Logger
}

// newRedisClient accepts either a redis:// URL or a host:port address.
func newRedisClient(cfg config.CacheConfig) (*redis.Client, error) {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   cfg.RedisDB,
	}), nil
}

// newApp wires the fetcher, parser, cache, failure budget and runners
// described by cfg.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger("app"),
	}

	var layers []cache.Store
	if cfg.Cache.Enabled {
		layers = append(layers, cache.NewMemoryLayer(cfg.Cache.MemorySize, cfg.Cache.TTL.Std()))

		rdb, err := newRedisClient(cfg.Cache)
		if err != nil {
			return nil, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			// The memory layer still serves; Redis errors count as misses.
			a.logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("Redis unavailable at startup")
		} else {
			a.logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Connected to Redis")
		}

		a.redis = rdb
		layers = append(layers, cache.NewManager(rdb))
	}

	fetcherCfg := cfg.FetcherConfig()
	if cfg.FailureBudget.Enabled {
		if a.redis == nil {
			a.logger.Warn().Msg("Failure budget needs the Redis cache; running without it")
		} else {
			fetcherCfg.Budget = ratelimit.NewTracker(a.redis, cfg.Thresholds(), logging.NewLogger("failure-tracker"))
		}
	}

	fetcher, err := client.NewFetcher(fetcherCfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	var opts []batch.Option
	if len(layers) > 0 {
		opts = append(opts, batch.WithCache(cache.NewLayered(cfg.Cache.TTL.Std(), layers...)))
	}
	a.orchestrator = batch.New(fetcher, parser.New(cfg.ParserLayout()), batch.Config{Years: cfg.Portal.Years}, opts...)

	var runner batch.SubBatchRunner
	if cfg.Edge.Local {
		runner = batch.LocalRunner{Orchestrator: a.orchestrator}
	} else {
		runner = peer.New(cfg.PeerConfig())
	}
	a.aggregator = batch.NewAggregator(runner, cfg.Edge.MaxConcurrency)

	return a, nil
}

// Close releases the Redis connection pool.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
