package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"rate-gate/internal/common/logging"
)

// statusRecorder wraps http.ResponseWriter to capture the status code, used
// to apply a policy's skip-on-success/skip-on-failure opt-outs after the
// handler runs.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware enforces the policy on every request passing through. The
// caller-facing translation follows the usual convention: rate-limit headers
// on every response, Retry-After plus 429 on rejection.
func (l *Limiter) HTTPMiddleware(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := l.CheckRateLimit(r.Context(), r, policy)
			if err != nil {
				// Only an invalid policy reaches here; that is a
				// deployment error, not a client one.
				logging.Error("Rate limit check failed", err,
					logging.String("path", r.URL.Path),
				)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(decision.RetryAfter)))
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			if !policy.SkipOnSuccess && !policy.SkipOnFailure {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			succeeded := rec.statusCode < 400
			if (succeeded && policy.SkipOnSuccess) || (!succeeded && policy.SkipOnFailure) {
				if err := l.ForgiveRateLimit(r.Context(), r, policy); err != nil {
					logging.Warn("Failed to forgive counted request",
						logging.Err(err),
						logging.String("path", r.URL.Path),
					)
				}
			}
		})
	}
}

// retryAfterSeconds rounds the wait up to whole seconds so a client honoring
// the header never retries early.
func retryAfterSeconds(wait time.Duration) int {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
