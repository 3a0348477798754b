package store

import (
	"context"
	"sync"
	"time"
)

// localWindow holds the event log for one identifier. The window duration of
// the most recent operation is kept so the sweeper knows when the entry as a
// whole has aged out.
type localWindow struct {
	events []time.Time
	window time.Duration
}

// LocalStore is the in-process counting store. It backs single-instance
// deployments and serves as the fallback when the distributed store is
// unreachable.
//
// Counting is exact: a mutex serializes operations per store, so concurrent
// increments for the same key are never lost and never overcount.
type LocalStore struct {
	mu      sync.RWMutex
	windows map[string]*localWindow
}

// NewLocalStore creates an empty local store.
func NewLocalStore() *LocalStore {
	return &LocalStore{
		windows: make(map[string]*localWindow),
	}
}

// Increment records an event for key and returns the in-window count,
// including the new event. Aged-out events are pruned first.
func (s *LocalStore) Increment(_ context.Context, key string, window time.Duration) (WindowSample, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok {
		w = &localWindow{}
		s.windows[key] = w
	}
	w.window = window
	w.events = prune(w.events, now.Add(-window))
	w.events = append(w.events, now)

	return WindowSample{
		Count:    len(w.events),
		OldestAt: w.events[0],
	}, nil
}

// Peek returns the in-window count for key without recording an event or
// mutating the stored log.
func (s *LocalStore) Peek(_ context.Context, key string, window time.Duration) (WindowSample, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.windows[key]
	if !ok {
		return WindowSample{}, nil
	}

	cutoff := now.Add(-window)
	for _, at := range w.events {
		if at.After(cutoff) {
			return WindowSample{
				Count:    countAfter(w.events, cutoff),
				OldestAt: at,
			}, nil
		}
	}
	return WindowSample{}, nil
}

// Forgive drops the newest event for key, if any.
func (s *LocalStore) Forgive(_ context.Context, key string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[key]; ok && len(w.events) > 0 {
		w.events = w.events[:len(w.events)-1]
	}
	return nil
}

// Reset clears key's window entirely.
func (s *LocalStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.windows, key)
	return nil
}

// Size reports the number of tracked identifiers.
func (s *LocalStore) Size(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.windows), nil
}

// Close implements Store. The local store holds no external resources.
func (s *LocalStore) Close() error {
	return nil
}

// Sweep removes identifiers whose newest event aged out before now and
// returns how many were removed. Expired entries are logically invisible
// before the sweep; this only bounds memory.
func (s *LocalStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		if len(w.events) == 0 || !w.events[len(w.events)-1].After(now.Add(-w.window)) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// prune drops events at or before cutoff. Events are appended in order, so a
// single scan from the front suffices.
func prune(events []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(events) && !events[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return events
	}
	return append(events[:0], events[idx:]...)
}

func countAfter(events []time.Time, cutoff time.Time) int {
	count := 0
	for i := len(events) - 1; i >= 0; i-- {
		if !events[i].After(cutoff) {
			break
		}
		count++
	}
	return count
}
