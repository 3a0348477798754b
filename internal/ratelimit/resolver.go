package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// UnknownKey is the identifier used when a request carries no address signal
// at all.
const UnknownKey = "unknown"

// ClientKey derives a stable identifier from a request. Resolution prefers,
// in order: the first address in X-Forwarded-For, then X-Real-IP, then the
// transport remote address with its port stripped. Missing headers are not
// errors; resolution degrades to the best available signal.
//
// The function performs no I/O and has no side effects.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		return host
	}
	if addr != "" {
		return addr
	}

	return UnknownKey
}

// resolveKey applies the policy's key function when set; it is authoritative
// and fully overrides default resolution.
func resolveKey(r *http.Request, policy Policy) string {
	if policy.KeyFunc != nil {
		return policy.KeyFunc(r)
	}
	return ClientKey(r)
}
