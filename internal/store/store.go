// Package store provides the counting stores behind the rate limiter: a
// Redis-backed distributed store, an in-process local store, and a fallback
// store that degrades from the former to the latter when Redis is unreachable.
package store

import (
	"context"
	"time"
)

// WindowSample is the result of a window operation: how many events fall in
// the trailing window and when the oldest surviving event happened (zero time
// when the window is empty).
//
// For Increment the count includes the event just recorded.
type WindowSample struct {
	Count    int
	OldestAt time.Time
}

// Store counts events per identifier over a trailing window.
//
// All implementations are safe for concurrent use. Increment and Peek answer
// "how many events occurred in (now - window, now]" for the key; Increment
// records one more event first.
type Store interface {
	// Increment records an event for key and returns the resulting in-window count.
	Increment(ctx context.Context, key string, window time.Duration) (WindowSample, error)

	// Peek returns the current in-window count without recording an event.
	// Calling Peek any number of times never changes what Increment observes.
	Peek(ctx context.Context, key string, window time.Duration) (WindowSample, error)

	// Forgive removes the newest recorded event for key, undoing one Increment.
	Forgive(ctx context.Context, key string, window time.Duration) error

	// Reset clears key's window entirely.
	Reset(ctx context.Context, key string) error

	// Size reports the number of tracked identifiers.
	Size(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// Sweeper is implemented by stores that hold expired entries until an
// explicit sweep. The limiter's background job calls Sweep periodically.
type Sweeper interface {
	// Sweep drops identifiers whose newest event aged out before now and
	// returns how many were removed.
	Sweep(now time.Time) int
}
