package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveThrough(limiter *Limiter, policy Policy, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	limiter.HTTPMiddleware(policy)(handler).ServeHTTP(rr, req)
	return rr
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func failHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "nope", http.StatusUnauthorized)
}

func TestHTTPMiddleware_AdmitsWithinQuota(t *testing.T) {
	limiter := newTestLimiter(t)
	policy := Policy{WindowDuration: time.Minute, MaxRequests: 3}

	rr := serveThrough(limiter, policy, okHandler, newRequest("172.16.0.1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "3", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rr.Header().Get("Retry-After"))
}

func TestHTTPMiddleware_RejectsOverQuota(t *testing.T) {
	limiter := newTestLimiter(t)
	policy := Policy{WindowDuration: time.Minute, MaxRequests: 2}

	for i := 0; i < 2; i++ {
		rr := serveThrough(limiter, policy, okHandler, newRequest("172.16.0.2"))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr := serveThrough(limiter, policy, okHandler, newRequest("172.16.0.2"))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestHTTPMiddleware_InvalidPolicy(t *testing.T) {
	limiter := newTestLimiter(t)

	rr := serveThrough(limiter, Policy{}, okHandler, newRequest("172.16.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestHTTPMiddleware_SkipOnSuccess(t *testing.T) {
	limiter := newTestLimiter(t)
	policy := Policy{WindowDuration: time.Minute, MaxRequests: 2, SkipOnSuccess: true}

	// Successful requests are forgiven after the fact, so they never
	// exhaust the quota.
	for i := 0; i < 10; i++ {
		rr := serveThrough(limiter, policy, okHandler, newRequest("172.16.0.4"))
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	// Failures still count.
	for i := 0; i < 2; i++ {
		rr := serveThrough(limiter, policy, failHandler, newRequest("172.16.0.4"))
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	rr := serveThrough(limiter, policy, failHandler, newRequest("172.16.0.4"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestHTTPMiddleware_SkipOnFailure(t *testing.T) {
	limiter := newTestLimiter(t)
	policy := Policy{WindowDuration: time.Minute, MaxRequests: 2, SkipOnFailure: true}

	for i := 0; i < 10; i++ {
		rr := serveThrough(limiter, policy, failHandler, newRequest("172.16.0.5"))
		require.Equal(t, http.StatusUnauthorized, rr.Code, "request %d", i+1)
	}

	for i := 0; i < 2; i++ {
		rr := serveThrough(limiter, policy, okHandler, newRequest("172.16.0.5"))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := serveThrough(limiter, policy, okHandler, newRequest("172.16.0.5"))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 1, retryAfterSeconds(200*time.Millisecond))
	assert.Equal(t, 1, retryAfterSeconds(time.Second))
	assert.Equal(t, 2, retryAfterSeconds(1100*time.Millisecond))
	assert.Equal(t, 60, retryAfterSeconds(time.Minute))
}
