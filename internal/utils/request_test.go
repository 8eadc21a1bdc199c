package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trustProxies(t *testing.T, entries ...string) {
	t.Helper()
	require.NoError(t, SetTrustedProxies(entries))
	t.Cleanup(func() { _ = SetTrustedProxies(nil) })
}

// TestGetClientIP, peer ve forwarding header'larına göre client IP seçimini test eder.
func TestGetClientIP(t *testing.T) {
	trustProxies(t, "10.0.0.0/8", "2001:db8:ffff::1")

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"ipv4 peer", "198.51.100.4:5555", "", "", "198.51.100.4"},
		{"ipv6 peer keeps full address", "[2001:db8::1]:5555", "", "", "2001:db8::1"},
		{"other ipv6 peer", "[2001:db8::2]:6666", "", "", "2001:db8::2"},
		{"untrusted peer ignores xff", "198.51.100.4:5555", "203.0.113.7", "", "198.51.100.4"},
		{"untrusted peer ignores x-real-ip", "198.51.100.4:5555", "", "203.0.113.7", "198.51.100.4"},
		{"trusted proxy uses xff", "10.1.2.3:443", "203.0.113.7", "", "203.0.113.7"},
		{"client-supplied prefix skipped", "10.1.2.3:443", "1.2.3.4, 203.0.113.7, 10.9.9.9", "", "203.0.113.7"},
		{"trusted ipv6 proxy", "[2001:db8:ffff::1]:443", "2001:db8::42", "", "2001:db8::42"},
		{"trusted proxy x-real-ip", "10.1.2.3:443", "", "203.0.113.8", "203.0.113.8"},
		{"garbage hop falls back to peer", "10.1.2.3:443", "not-an-ip", "", "10.1.2.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

// TestGetClientIP_NoTrustedProxies, varsayılan ayarda header'ların yok sayıldığını test eder.
func TestGetClientIP_NoTrustedProxies(t *testing.T) {
	require.NoError(t, SetTrustedProxies(nil))

	seen := map[string]bool{}
	for _, spoofed := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", nil)
		req.RemoteAddr = "198.51.100.9:40000"
		req.Header.Set("X-Forwarded-For", spoofed)
		seen[GetClientIP(req)] = true
	}

	assert.Equal(t, map[string]bool{"198.51.100.9": true}, seen)
}

// TestSetTrustedProxies_Invalid, hatalı girdilerin reddedildiğini test eder.
func TestSetTrustedProxies_Invalid(t *testing.T) {
	for _, entry := range []string{"10.0.0.0/33", "proxy.internal", "10.0.0"} {
		assert.Error(t, SetTrustedProxies([]string{entry}), entry)
	}
	require.NoError(t, SetTrustedProxies(nil))
}
