package ratelimit

import (
	"sync"
	"time"
)

// MaxBackoff caps the escalated wait time regardless of violation count.
const MaxBackoff = time.Hour

// inactivityFactor times the base window is how long a violation record
// survives without new violations before the counter resets.
const inactivityFactor = 10

type violation struct {
	count      int
	lastAt     time.Time
	baseWindow time.Duration
}

// BackoffTracker escalates a per-identifier penalty on repeated quota
// violations. It is independent of the limiter's own window state: calling
// code invokes CalculateBackoff when it observes a rejected decision, never
// the limiter itself.
type BackoffTracker struct {
	mu         sync.Mutex
	violations map[string]*violation
}

// NewBackoffTracker creates an empty tracker.
func NewBackoffTracker() *BackoffTracker {
	return &BackoffTracker{
		violations: make(map[string]*violation),
	}
}

// CalculateBackoff records one more violation for the identifier and returns
// the escalated wait: the Nth consecutive violation yields
// baseWindow * 2^(N-1), capped at MaxBackoff.
//
// If more than inactivityFactor base windows passed since the identifier's
// last violation, the count resets first and the result is baseWindow again.
func (t *BackoffTracker) CalculateBackoff(identifier string, baseWindow time.Duration) time.Duration {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.violations[identifier]
	if v != nil && now.Sub(v.lastAt) > inactivityFactor*baseWindow {
		v = nil
	}
	if v == nil {
		v = &violation{}
		t.violations[identifier] = v
	}

	v.count++
	v.lastAt = now
	v.baseWindow = baseWindow

	return escalate(baseWindow, v.count)
}

// ViolationCount reports the identifier's current violation count. Records
// past their inactivity period read as zero.
func (t *BackoffTracker) ViolationCount(identifier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.violations[identifier]
	if !ok {
		return 0
	}
	if time.Since(v.lastAt) > inactivityFactor*v.baseWindow {
		return 0
	}
	return v.count
}

// ResetViolations clears the identifier's violation record.
func (t *BackoffTracker) ResetViolations(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.violations, identifier)
}

// tracked reports how many identifiers currently hold a violation record.
func (t *BackoffTracker) tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.violations)
}

// sweep drops records past their inactivity period and returns how many were
// removed. The limiter's background job calls this; records are also reset
// lazily on the next CalculateBackoff, so sweeping only bounds memory.
func (t *BackoffTracker) sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for identifier, v := range t.violations {
		if now.Sub(v.lastAt) > inactivityFactor*v.baseWindow {
			delete(t.violations, identifier)
			removed++
		}
	}
	return removed
}

// escalate doubles the base window per prior violation, saturating at
// MaxBackoff before the shift can overflow.
func escalate(baseWindow time.Duration, count int) time.Duration {
	shift := count - 1
	if shift > 30 {
		return MaxBackoff
	}
	backoff := baseWindow << shift
	if backoff > MaxBackoff || backoff <= 0 {
		return MaxBackoff
	}
	return backoff
}
