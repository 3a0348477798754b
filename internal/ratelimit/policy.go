package ratelimit

import (
	"net/http"
	"time"

	"rate-gate/internal/common/errors"
)

// Policy describes one quota: how many admissions an identifier gets per
// trailing window, how the identifier is derived, and whether successful or
// failed requests are forgiven after the fact.
//
// A Policy is a value type and never mutates after creation; the same Policy
// may be shared across any number of concurrent calls.
type Policy struct {
	// WindowDuration is the trailing interval events are counted over. Must be > 0.
	WindowDuration time.Duration `json:"window_duration"`

	// MaxRequests is the number of admissions per identifier per window,
	// inclusive: the Nth in-window request is admitted, the N+1th is not.
	// Must be >= 1.
	MaxRequests int `json:"max_requests"`

	// KeyFunc, when set, fully overrides default identifier resolution.
	// Requests mapped to the same key share one quota regardless of address.
	KeyFunc func(*http.Request) string `json:"-"`

	// SkipOnSuccess forgives the counted event when the response succeeds
	// (status < 400), so only failures consume quota.
	SkipOnSuccess bool `json:"skip_on_success"`

	// SkipOnFailure forgives the counted event when the response fails
	// (status >= 400), so only successes consume quota.
	SkipOnFailure bool `json:"skip_on_failure"`
}

// Validate reports whether the policy is usable. An invalid policy is a
// configuration error: calling code is expected to validate presets before
// deployment.
func (p Policy) Validate() error {
	if p.MaxRequests < 1 {
		return errors.ValidationError("policy max requests must be at least 1")
	}
	if p.WindowDuration <= 0 {
		return errors.ValidationError("policy window duration must be positive")
	}
	return nil
}

// Named policy presets, selected by intent rather than hand-tuned numbers.
// Each is a pure value; selecting one has no side effects.
var (
	// AuthPolicy throttles authentication attempts: long window, very low
	// quota, both successes and failures count.
	AuthPolicy = Policy{
		WindowDuration: 15 * time.Minute,
		MaxRequests:    5,
	}

	// ReadPolicy suits read-heavy endpoints: short window, generous quota.
	ReadPolicy = Policy{
		WindowDuration: time.Minute,
		MaxRequests:    300,
	}

	// FreeTierPolicy is the entitlement-tiered quota for unpaid callers.
	FreeTierPolicy = Policy{
		WindowDuration: time.Hour,
		MaxRequests:    100,
	}

	// PaidTierPolicy is the entitlement-tiered quota for paying callers.
	PaidTierPolicy = Policy{
		WindowDuration: time.Hour,
		MaxRequests:    5000,
	}

	// BurstPolicy protects against short bursts of failures and retries;
	// successful requests do not consume quota.
	BurstPolicy = Policy{
		WindowDuration: 10 * time.Second,
		MaxRequests:    10,
		SkipOnSuccess:  true,
	}
)
