package store

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"rate-gate/internal/circuitbreaker"
	"rate-gate/internal/common/logging"
)

// FallbackStore tries the distributed store first and transparently retries
// against the local store when the distributed side fails or times out.
// Callers never see a distributed-store error: admission control degrades to
// single-instance accuracy instead of failing open or closed.
//
// A circuit breaker guards the primary so a flapping Redis stops costing the
// per-operation timeout on every request; while the circuit is open, calls go
// straight to the local store.
type FallbackStore struct {
	primary Store
	local   *LocalStore
	breaker *circuitbreaker.Breaker
	logger  logging.Logger
}

// NewFallbackStore combines a distributed primary with a local fallback.
func NewFallbackStore(primary Store, local *LocalStore, logger logging.Logger) *FallbackStore {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &FallbackStore{
		primary: primary,
		local:   local,
		breaker: circuitbreaker.New("counting-store", circuitbreaker.StoreConfig, logger),
		logger:  logger,
	}
}

// Increment records an event, preferring the distributed store.
func (s *FallbackStore) Increment(ctx context.Context, key string, window time.Duration) (WindowSample, error) {
	res, err := s.breaker.ExecuteWithFallback(ctx,
		func() (interface{}, error) {
			return s.primary.Increment(ctx, key, window)
		},
		func(cause error) (interface{}, error) {
			return s.local.Increment(ctx, key, window)
		},
	)
	if err != nil {
		s.logFailure("increment", key, err)
		return s.local.Increment(ctx, key, window)
	}
	return res.(WindowSample), nil
}

// Peek reads the current count, preferring the distributed store.
func (s *FallbackStore) Peek(ctx context.Context, key string, window time.Duration) (WindowSample, error) {
	res, err := s.breaker.ExecuteWithFallback(ctx,
		func() (interface{}, error) {
			return s.primary.Peek(ctx, key, window)
		},
		func(cause error) (interface{}, error) {
			return s.local.Peek(ctx, key, window)
		},
	)
	if err != nil {
		s.logFailure("peek", key, err)
		return s.local.Peek(ctx, key, window)
	}
	return res.(WindowSample), nil
}

// Forgive undoes the newest event on whichever store currently answers.
func (s *FallbackStore) Forgive(ctx context.Context, key string, window time.Duration) error {
	err := s.breaker.Execute(ctx, func() error {
		return s.primary.Forgive(ctx, key, window)
	})
	if err != nil {
		s.logFailure("forgive", key, err)
		return s.local.Forgive(ctx, key, window)
	}
	return nil
}

// Reset clears key's window on both stores so quota is restored regardless
// of which side has been counting.
func (s *FallbackStore) Reset(ctx context.Context, key string) error {
	err := s.breaker.Execute(ctx, func() error {
		return s.primary.Reset(ctx, key)
	})
	if err != nil {
		s.logFailure("reset", key, err)
	}
	return s.local.Reset(ctx, key)
}

// Size reports tracked identifiers from the distributed store, or from the
// local store while the distributed side is unavailable.
func (s *FallbackStore) Size(ctx context.Context) (int, error) {
	var size int
	err := s.breaker.Execute(ctx, func() error {
		var opErr error
		size, opErr = s.primary.Size(ctx)
		return opErr
	})
	if err != nil {
		s.logFailure("size", "", err)
		return s.local.Size(ctx)
	}
	return size, nil
}

// Close releases both stores.
func (s *FallbackStore) Close() error {
	return multierr.Combine(s.primary.Close(), s.local.Close())
}

// Sweep forwards to the local store; the distributed store expires entries
// by TTL and needs no sweeping.
func (s *FallbackStore) Sweep(now time.Time) int {
	return s.local.Sweep(now)
}

// Breaker exposes the circuit guarding the distributed store, for health
// reporting.
func (s *FallbackStore) Breaker() *circuitbreaker.Breaker {
	return s.breaker
}

// logFailure records one warning per failed distributed-store operation.
func (s *FallbackStore) logFailure(op, key string, err error) {
	fields := []logging.Field{
		{Key: "operation", Value: op},
		logging.Err(err),
	}
	if key != "" {
		fields = append(fields, logging.String("key", key))
	}
	s.logger.Warn("Distributed store unavailable, using local store", fields...)
}
