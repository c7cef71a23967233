package ratelimit

import (
	"net/http"
	"strings"
)

// KeyFunc extracts the client identity used as the rate limit key.
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by client network identity.
func IPKeyFunc(r *http.Request) string {
	return GetClientIP(r)
}

// CompositeKeyFunc joins multiple key functions with ":".
func CompositeKeyFunc(funcs ...KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(funcs))
		for _, fn := range funcs {
			if key := fn(r); key != "" {
				parts = append(parts, key)
			}
		}
		if len(parts) == 0 {
			return GetClientIP(r)
		}
		return strings.Join(parts, ":")
	}
}

// GetClientIP returns the forwarded client address when present, falling
// back to the socket address. X-Forwarded-For may carry a proxy chain;
// the first entry is the originating client.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return stripPort(r.RemoteAddr)
}

// stripPort removes the port from an address string. Handles both IPv4
// ("192.168.1.1:8080") and IPv6 ("[::1]:8080") formats.
func stripPort(addr string) string {
	if idx := strings.LastIndex(addr, ":"); idx >= 0 {
		host := addr[:idx]
		host = strings.TrimPrefix(host, "[")
		host = strings.TrimSuffix(host, "]")
		return host
	}
	return addr
}
