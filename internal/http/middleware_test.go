package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractClientIP_xForwardedFor(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{
			name:     "single IP",
			header:   "192.168.1.1",
			expected: "192.168.1.1",
		},
		{
			name:     "multiple IPs (take first)",
			header:   "203.0.113.1, 198.51.100.1",
			expected: "203.0.113.1",
		},
		{
			name:     "multiple IPs with extra spaces",
			header:   "  203.0.113.1  ,  198.51.100.1",
			expected: "203.0.113.1",
		},
		{
			name:     "ipv6",
			header:   "2001:db8::1",
			expected: "2001:db8::1",
		},
		{
			name:     "garbage falls back to remote addr",
			header:   "unknown",
			expected: "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("X-Forwarded-For", tt.header)

			ip := ExtractClientIP(r, true)
			require.Equal(t, tt.expected, ip)
		})
	}
}

func TestExtractClientIP_xRealIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Real-IP", "192.168.1.100")

	ip := ExtractClientIP(r, true)
	require.Equal(t, "192.168.1.100", ip)
}

func TestExtractClientIP_xForwardedForTakesPreference(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.1")
	r.Header.Set("X-Real-IP", "192.168.1.100")

	ip := ExtractClientIP(r, true)
	require.Equal(t, "203.0.113.1", ip)
}

func TestExtractClientIP_proxyHeadersIgnoredWhenUntrusted(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "198.51.100.7:4567"
	r.Header.Set("X-Forwarded-For", "203.0.113.1")
	r.Header.Set("X-Real-IP", "192.168.1.100")

	ip := ExtractClientIP(r, false)
	require.Equal(t, "198.51.100.7", ip)
}

func TestExtractClientIP_remoteAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{name: "ipv4 with port", remoteAddr: "192.168.1.1:12345", expected: "192.168.1.1"},
		{name: "ipv6 with port", remoteAddr: "[::1]:12345", expected: "::1"},
		{name: "no port", remoteAddr: "192.168.1.1", expected: "192.168.1.1"},
		{name: "ipv4 mapped ipv6", remoteAddr: "[::ffff:192.0.2.9]:80", expected: "192.0.2.9"},
		{name: "not an address", remoteAddr: "pipe", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr

			ip := ExtractClientIP(r, false)
			require.Equal(t, tt.expected, ip)
		})
	}
}

func TestClientIPMiddleware(t *testing.T) {
	var capturedIP string
	handler := ClientIPMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedIP = ClientIPFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.50")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, r)

	require.Equal(t, "203.0.113.50", capturedIP)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestClientIPFromContext_empty(t *testing.T) {
	require.Empty(t, ClientIPFromContext(context.Background()))
}
