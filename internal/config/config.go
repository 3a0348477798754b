// Package config provides configuration management for the rate-gate library
// and its demo binary. It handles loading configuration from environment
// variables with sensible defaults and validates the configuration so the
// admission-control subsystem starts safely.
//
// Redis is optional: when REDIS_ADDRESS is unset the limiter runs on the
// in-process local store alone, which is correct for single-instance
// deployments.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Demo server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Log file path (default: stdout)
//
// Redis Configuration (distributed counting store):
//   - REDIS_ADDRESS: Redis server address; empty disables the distributed store
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//   - STORE_TIMEOUT: Per-operation Redis timeout (default: 250ms)
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting (default: true)
//   - RATE_LIMIT_DEFAULT: Default admissions per window (default: 100)
//   - RATE_LIMIT_WINDOW: Default window duration (default: 60s)
//   - CLEANUP_INTERVAL: Background sweep interval (default: 1m)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the admission-control subsystem.
// All fields correspond to environment variables that can be set to override
// the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port     string // Demo server port number
	LogLevel string // Logging level (debug, info, warn, error)
	LogFile  string // Log file path, empty for stdout

	// Redis configuration for the distributed counting store
	RedisAddress  string        // Redis server address (host:port), empty for local-only mode
	RedisPassword string        // Redis authentication password
	RedisDB       string        // Redis database number (0-15)
	RedisPoolSize string        // Redis connection pool size
	StoreTimeout  time.Duration // Bound on every distributed-store operation

	// Rate limiting configuration
	RateLimitEnabled bool          // Whether rate limiting is enabled
	RateLimitDefault string        // Default admissions per window
	RateLimitWindow  string        // Default window duration (e.g., "60s", "1m")
	CleanupInterval  time.Duration // How often expired windows are swept
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding default
// value is used.
//
// This function does not validate the configuration - call Validate() on the
// returned Config to ensure all values are valid.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		// Redis configuration; empty address means local-only mode
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),
		StoreTimeout:  getDurationEnv("STORE_TIMEOUT", 250*time.Millisecond),

		// Rate limiting configuration
		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
		RateLimitDefault: getEnv("RATE_LIMIT_DEFAULT", "100"),
		RateLimitWindow:  getEnv("RATE_LIMIT_WINDOW", "60s"),
		CleanupInterval:  getDurationEnv("CLEANUP_INTERVAL", time.Minute),
	}
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
//
// This function accepts the representations strconv.ParseBool accepts
// ("true", "1", "t", "false", "0", "f", ...); any other value or parsing
// error returns defaultValue.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a
// default value when unset or unparseable.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// Validate performs validation on the configuration to ensure all values are
// valid before the subsystem starts.
//
// This method checks:
//   - Port range
//   - Redis settings when a Redis address is configured
//   - Rate limit defaults when rate limiting is enabled
//
// Returns:
//   - error: A descriptive error if validation fails, nil if configuration is valid
func (c *Config) Validate() error {
	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	// Validate Redis config if provided
	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
		if c.StoreTimeout <= 0 {
			return fmt.Errorf("STORE_TIMEOUT must be a positive duration")
		}
	}

	// Validate rate limit config
	if c.RateLimitEnabled {
		if limit, err := strconv.Atoi(c.RateLimitDefault); err != nil || limit < 1 {
			return fmt.Errorf("RATE_LIMIT_DEFAULT must be a positive number")
		}
		if window, err := time.ParseDuration(c.RateLimitWindow); err != nil || window <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be a valid duration (e.g., '60s', '1m')")
		}
	}

	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be a positive duration")
	}

	return nil
}
