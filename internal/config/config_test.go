package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "LOG_FILE",
		"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE", "STORE_TIMEOUT",
		"RATE_LIMIT_ENABLED", "RATE_LIMIT_DEFAULT", "RATE_LIMIT_WINDOW", "CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.LogFile)
	assert.Equal(t, "", cfg.RedisAddress)
	assert.Equal(t, "0", cfg.RedisDB)
	assert.Equal(t, "10", cfg.RedisPoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, "100", cfg.RateLimitDefault)
	assert.Equal(t, "60s", cfg.RateLimitWindow)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("STORE_TIMEOUT", "500ms")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RATE_LIMIT_WINDOW", "15m")
	t.Setenv("CLEANUP_INTERVAL", "30s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "redis:6379", cfg.RedisAddress)
	assert.Equal(t, 500*time.Millisecond, cfg.StoreTimeout)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, "15m", cfg.RateLimitWindow)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
}

func TestLoad_IgnoresUnparseableValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "definitely")
	t.Setenv("STORE_TIMEOUT", "soonish")
	t.Setenv("CLEANUP_INTERVAL", "-5s")

	cfg := Load()

	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, time.Minute, cfg.CleanupInterval)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:             "8080",
			LogLevel:         "info",
			RedisAddress:     "localhost:6379",
			RedisDB:          "0",
			RedisPoolSize:    "10",
			StoreTimeout:     250 * time.Millisecond,
			RateLimitEnabled: true,
			RateLimitDefault: "100",
			RateLimitWindow:  "60s",
			CleanupInterval:  time.Minute,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"invalid port", func(c *Config) { c.Port = "not-a-port" }, "PORT"},
		{"port out of range", func(c *Config) { c.Port = "70000" }, "PORT"},
		{"invalid redis db", func(c *Config) { c.RedisDB = "16" }, "REDIS_DB"},
		{"invalid pool size", func(c *Config) { c.RedisPoolSize = "0" }, "REDIS_POOL_SIZE"},
		{"invalid store timeout", func(c *Config) { c.StoreTimeout = 0 }, "STORE_TIMEOUT"},
		{"invalid rate limit", func(c *Config) { c.RateLimitDefault = "0" }, "RATE_LIMIT_DEFAULT"},
		{"invalid window", func(c *Config) { c.RateLimitWindow = "soon" }, "RATE_LIMIT_WINDOW"},
		{"invalid cleanup interval", func(c *Config) { c.CleanupInterval = 0 }, "CLEANUP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}

	t.Run("redis settings ignored in local-only mode", func(t *testing.T) {
		cfg := valid()
		cfg.RedisAddress = ""
		cfg.RedisDB = "99"
		cfg.RedisPoolSize = "0"

		assert.NoError(t, cfg.Validate())
	})

	t.Run("rate limit settings ignored when disabled", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimitEnabled = false
		cfg.RateLimitDefault = "0"

		assert.NoError(t, cfg.Validate())
	})
}
