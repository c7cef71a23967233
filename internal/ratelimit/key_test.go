package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.1:8080",
			expected:   "192.168.1.1",
		},
		{
			name:       "remote addr ipv6",
			remoteAddr: "[::1]:8080",
			expected:   "::1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			expected:   "203.0.113.7",
		},
		{
			name:       "x-forwarded-for chain takes first",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2, 10.0.0.3"},
			expected:   "203.0.113.7",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:8080",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			expected:   "203.0.113.9",
		},
		{
			name:       "x-forwarded-for wins over x-real-ip",
			remoteAddr: "10.0.0.1:8080",
			headers: map[string]string{
				"X-Forwarded-For": "203.0.113.7",
				"X-Real-IP":       "203.0.113.9",
			},
			expected: "203.0.113.7",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for name, value := range tt.headers {
				r.Header.Set(name, value)
			}

			assert.Equal(t, tt.expected, GetClientIP(r))
		})
	}
}

func TestIPKeyFunc(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "192.168.1.1:8080"

	assert.Equal(t, "192.168.1.1", IPKeyFunc(r))
}

func TestCompositeKeyFunc(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest("GET", "/api/v1/feedback", nil)
	r.RemoteAddr = "192.168.1.1:8080"

	byPath := func(r *http.Request) string { return r.URL.Path }

	key := CompositeKeyFunc(IPKeyFunc, byPath)(r)
	assert.Equal(t, "192.168.1.1:/api/v1/feedback", key)

	// All-empty parts fall back to the client address.
	empty := func(*http.Request) string { return "" }
	key = CompositeKeyFunc(empty)(r)
	assert.Equal(t, "192.168.1.1", key)
}
