// Package ratelimit decides in bounded time whether to admit or reject a
// request under a named quota policy, using a sliding-window count per
// identifier. Counting runs against a distributed store with transparent
// local fallback (see internal/store); repeated violators can additionally be
// penalized through the BackoffTracker.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rate-gate/internal/common/errors"
	"rate-gate/internal/common/logging"
	"rate-gate/internal/store"
)

// Config holds limiter-level settings. The quota itself lives on the Policy.
type Config struct {
	// Enabled toggles enforcement; a disabled limiter admits everything.
	Enabled bool `json:"enabled"`
	// CleanupInterval is how often expired windows and stale violation
	// records are swept.
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns the limiter defaults: enabled, sweeping every minute.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		CleanupInterval: time.Minute,
	}
}

// Decision is the outcome of one admission check. It is produced fresh on
// every call and never mutated after return.
type Decision struct {
	// Allowed reports whether the request is admitted.
	Allowed bool `json:"allowed"`
	// Remaining is how many admissions are left in the current window.
	Remaining int `json:"remaining"`
	// RetryAfter is how long until the oldest in-window event ages out;
	// zero when the request is admitted.
	RetryAfter time.Duration `json:"retry_after"`
	// Limit echoes the policy's MaxRequests.
	Limit int `json:"limit"`
	// ResetAt is when the current window frees its oldest slot.
	ResetAt time.Time `json:"reset_at"`
}

// StatsSnapshot is a read-only aggregate for observability.
type StatsSnapshot struct {
	TrackedIdentifiers int `json:"tracked_identifiers"`
}

// Limiter is the admission-control entry point. All methods are safe for
// concurrent use. Create one per process (or per test) and Destroy it when
// done so the background sweep stops deterministically.
type Limiter struct {
	store   store.Store
	config  *Config
	logger  logging.Logger
	backoff *BackoffTracker

	sweeper     *cron.Cron
	destroyOnce sync.Once
}

// New creates a limiter over the given counting store. A nil config uses
// DefaultConfig. The background sweep starts immediately and runs until
// Destroy is called.
func New(countingStore store.Store, config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = time.Minute
	}

	l := &Limiter{
		store:   countingStore,
		config:  config,
		logger:  logging.GetGlobalLogger(),
		backoff: NewBackoffTracker(),
		sweeper: cron.New(),
	}

	// The sweep only bounds memory; expired entries are already invisible
	// to window reads.
	if _, err := l.sweeper.AddFunc("@every "+config.CleanupInterval.String(), l.sweep); err != nil {
		l.logger.Error("Failed to schedule cleanup sweep", err)
	}
	l.sweeper.Start()

	return l
}

// CheckRateLimit counts the request against the identifier's window and
// decides admission. It always mutates state; call it at most once per
// logical request. The returned error is non-nil only for an invalid policy —
// store failures are absorbed by the fallback path and never surface here.
func (l *Limiter) CheckRateLimit(ctx context.Context, r *http.Request, policy Policy) (*Decision, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if !l.config.Enabled {
		return &Decision{
			Allowed:   true,
			Remaining: policy.MaxRequests,
			Limit:     policy.MaxRequests,
			ResetAt:   time.Now().Add(policy.WindowDuration),
		}, nil
	}

	key := resolveKey(r, policy)
	sample, err := l.store.Increment(ctx, key, policy.WindowDuration)
	if err != nil {
		return nil, errors.InternalError("failed to check rate limit", err).WithContext("key", key)
	}

	return l.decide(sample, sample.Count <= policy.MaxRequests, policy), nil
}

// GetRateLimitStatus inspects the identifier's current window without
// consuming quota. Calling it any number of times never changes subsequent
// CheckRateLimit outcomes. Allowed reports whether a request made right now
// would be admitted.
func (l *Limiter) GetRateLimitStatus(ctx context.Context, r *http.Request, policy Policy) (*Decision, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	if !l.config.Enabled {
		return &Decision{
			Allowed:   true,
			Remaining: policy.MaxRequests,
			Limit:     policy.MaxRequests,
			ResetAt:   time.Now().Add(policy.WindowDuration),
		}, nil
	}

	key := resolveKey(r, policy)
	sample, err := l.store.Peek(ctx, key, policy.WindowDuration)
	if err != nil {
		return nil, errors.InternalError("failed to read rate limit status", err).WithContext("key", key)
	}

	return l.decide(sample, sample.Count < policy.MaxRequests, policy), nil
}

// ForgiveRateLimit removes the identifier's newest counted event, undoing one
// CheckRateLimit. The HTTP middleware uses this for policies that skip
// successful or failed requests.
func (l *Limiter) ForgiveRateLimit(ctx context.Context, r *http.Request, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	return l.store.Forgive(ctx, resolveKey(r, policy), policy.WindowDuration)
}

// ResetRateLimit clears the identifier's window entirely, restoring full
// quota immediately.
func (l *Limiter) ResetRateLimit(ctx context.Context, r *http.Request, policy Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	return l.store.Reset(ctx, resolveKey(r, policy))
}

// GetStats reports how many identifiers are currently tracked. Store
// failures degrade to a zero snapshot rather than an error.
func (l *Limiter) GetStats(ctx context.Context) StatsSnapshot {
	size, err := l.store.Size(ctx)
	if err != nil {
		l.logger.Warn("Failed to read store size", logging.Err(err))
		return StatsSnapshot{}
	}
	return StatsSnapshot{TrackedIdentifiers: size}
}

// Backoff returns the limiter's violation tracker. Calling code consults it
// when it observes a rejected Decision; the limiter never escalates on its
// own.
func (l *Limiter) Backoff() *BackoffTracker {
	return l.backoff
}

// Destroy stops the background sweep and releases store handles. It is
// idempotent and safe to call from multiple goroutines; required for clean
// shutdown and for tests that create many limiter instances.
func (l *Limiter) Destroy() {
	l.destroyOnce.Do(func() {
		l.sweeper.Stop()
		if err := l.store.Close(); err != nil {
			l.logger.Warn("Failed to close counting store", logging.Err(err))
		}
		l.logger.Debug("Rate limiter destroyed")
	})
}

// decide converts a window sample into a Decision.
func (l *Limiter) decide(sample store.WindowSample, allowed bool, policy Policy) *Decision {
	now := time.Now()

	resetAt := now.Add(policy.WindowDuration)
	if !sample.OldestAt.IsZero() {
		resetAt = sample.OldestAt.Add(policy.WindowDuration)
	}

	remaining := policy.MaxRequests - sample.Count
	if remaining < 0 {
		remaining = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAt.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
	}

	return &Decision{
		Allowed:    allowed,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		Limit:      policy.MaxRequests,
		ResetAt:    resetAt,
	}
}

// sweep runs one cleanup pass over the counting store and violation records.
func (l *Limiter) sweep() {
	now := time.Now()

	removed := 0
	if sw, ok := l.store.(store.Sweeper); ok {
		removed = sw.Sweep(now)
	}
	stale := l.backoff.sweep(now)

	if removed > 0 || stale > 0 {
		l.logger.Debug("Cleanup sweep completed",
			logging.Int("windows_removed", removed),
			logging.Int("violations_removed", stale),
		)
	}
}
