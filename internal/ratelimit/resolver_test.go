package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	t.Run("prefers first forwarded address", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 70.41.3.18, 150.172.238.178")
		req.Header.Set("X-Real-IP", "198.51.100.1")
		req.RemoteAddr = "192.0.2.1:54321"

		assert.Equal(t, "203.0.113.7", ClientKey(req))
	})

	t.Run("falls back to real ip header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Real-IP", "198.51.100.1")
		req.RemoteAddr = "192.0.2.1:54321"

		assert.Equal(t, "198.51.100.1", ClientKey(req))
	})

	t.Run("falls back to remote address without port", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:54321"

		assert.Equal(t, "192.0.2.1", ClientKey(req))
	})

	t.Run("keeps remote address without port as is", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.9"

		assert.Equal(t, "192.0.2.9", ClientKey(req))
	})

	t.Run("empty forwarded header is skipped", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", "  ")
		req.RemoteAddr = "192.0.2.1:54321"

		assert.Equal(t, "192.0.2.1", ClientKey(req))
	})

	t.Run("no signal at all", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = ""

		assert.Equal(t, UnknownKey, ClientKey(req))
	})
}

func TestResolveKey(t *testing.T) {
	t.Run("key function is authoritative", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		req.RemoteAddr = "192.0.2.1:54321"

		policy := Policy{
			KeyFunc: func(r *http.Request) string { return "user-7" },
		}

		assert.Equal(t, "user-7", resolveKey(req, policy))
	})

	t.Run("defaults to client key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:54321"

		assert.Equal(t, "192.0.2.1", resolveKey(req, Policy{}))
	})
}
