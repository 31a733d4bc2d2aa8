// Package bootstrap builds the optional runtime collaborators (Redis, rate
// limiting, reply generation, escalation email) from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/mindbridge-triage/internal/config"
	httpmiddleware "github.com/wolfman30/mindbridge-triage/internal/http/middleware"
	"github.com/wolfman30/mindbridge-triage/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRateLimiter shares counters through Redis when a client is available
// and falls back to per-replica token buckets otherwise. It returns nil when
// rate limiting is disabled.
func BuildRateLimiter(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if cfg == nil || cfg.RateLimitRPS <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		// fixed one-second windows, so the burst is the per-second ceiling
		limit := max(cfg.RateLimitBurst, int(cfg.RateLimitRPS))
		logger.Info("rate limiting via redis", "limit_per_second", limit)
		return httpmiddleware.NewRedisLimiter(redisClient, limit)
	}
	logger.Info("rate limiting in memory", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	return httpmiddleware.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
}
