package ratelimit

import (
	"strconv"
	"sync"

	"rate-gate/internal/common/logging"
	"rate-gate/internal/config"
	"rate-gate/internal/redis"
	"rate-gate/internal/store"
)

// Process-wide limiter instance. Request-handling code should receive a
// *Limiter explicitly; the accessor exists for wiring at the edges and is
// built lazily from environment configuration on first use.
var (
	defaultLimiter *Limiter
	defaultMu      sync.Mutex
)

// GetRateLimiter returns the process-wide limiter, building it from
// config.Load() on first call. When Redis is configured and reachable the
// limiter counts against it with local fallback; otherwise it runs on the
// local store alone.
func GetRateLimiter() *Limiter {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLimiter == nil {
		cfg := config.Load()
		defaultLimiter = New(BuildStore(cfg), &Config{
			Enabled:         cfg.RateLimitEnabled,
			CleanupInterval: cfg.CleanupInterval,
		})
	}
	return defaultLimiter
}

// SetRateLimiter replaces the process-wide limiter, destroying any previous
// one. Pass a limiter constructed with New for dependency injection.
func SetRateLimiter(l *Limiter) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLimiter != nil && defaultLimiter != l {
		defaultLimiter.Destroy()
	}
	defaultLimiter = l
}

// ResetRateLimiter destroys the process-wide limiter so the next
// GetRateLimiter call rebuilds it. Intended for tests and shutdown paths.
func ResetRateLimiter() {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLimiter != nil {
		defaultLimiter.Destroy()
		defaultLimiter = nil
	}
}

// BuildStore assembles the counting store for the given configuration:
// Redis with local fallback when an address is configured and reachable,
// local-only otherwise. A Redis connection failure is logged and degrades to
// local-only rather than preventing startup.
func BuildStore(cfg *config.Config) store.Store {
	local := store.NewLocalStore()

	if cfg.RedisAddress == "" {
		logging.Info("No Redis address configured, using local counting store")
		return local
	}

	db, _ := strconv.Atoi(cfg.RedisDB)
	poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)

	client, err := redis.NewClient(&redis.Config{
		Address:  cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       db,
		PoolSize: poolSize,
		Timeout:  cfg.StoreTimeout,
	})
	if err != nil {
		logging.Warn("Redis unreachable, using local counting store",
			logging.Err(err),
			logging.String("address", cfg.RedisAddress),
		)
		return local
	}

	logging.Info("Using distributed counting store with local fallback",
		logging.String("address", cfg.RedisAddress),
	)
	return store.NewFallbackStore(store.NewRedisStore(client), local, logging.GetGlobalLogger())
}
