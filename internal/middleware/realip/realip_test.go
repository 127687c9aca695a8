package realip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolver_ClientIP(t *testing.T) {
	trusted := Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8", "192.168.1.1", "not-an-ip"}}

	tests := []struct {
		name    string
		cfg     Config
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "proxy trust disabled",
			cfg:     Config{TrustedProxies: []string{"10.0.0.0/8"}},
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:    "10.0.0.1",
		},
		{
			name:    "untrusted remote ignores headers",
			cfg:     trusted,
			remote:  "172.16.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50"},
			want:    "172.16.0.1",
		},
		{
			name:    "trusted remote uses forwarded client",
			cfg:     trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "203.0.113.50, 10.0.0.5"},
			want:    "203.0.113.50",
		},
		{
			name:    "spoofed leftmost hop is skipped",
			cfg:     trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "1.1.1.1, 203.0.113.50, 10.0.0.5"},
			want:    "203.0.113.50",
		},
		{
			name:    "all hops trusted returns leftmost",
			cfg:     trusted,
			remote:  "10.0.0.1:1234",
			headers: map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.5"},
			want:    "10.1.1.1",
		},
		{
			name:    "single trusted address",
			cfg:     trusted,
			remote:  "192.168.1.1:1234",
			headers: map[string]string{"X-Real-IP": " 198.51.100.7 "},
			want:    "198.51.100.7",
		},
		{
			name:   "trusted remote without headers",
			cfg:    trusted,
			remote: "10.0.0.1:1234",
			want:   "10.0.0.1",
		},
		{
			name:   "remote without port",
			cfg:    Config{},
			remote: "203.0.113.9",
			want:   "203.0.113.9",
		},
		{
			name:    "ipv6 proxy",
			cfg:     Config{TrustProxy: true, TrustedProxies: []string{"fd00::/8"}},
			remote:  "[fd00::1]:443",
			headers: map[string]string{"X-Forwarded-For": "2001:db8::5"},
			want:    "2001:db8::5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, NewResolver(tt.cfg).ClientIP(req))
		})
	}
}

func TestMiddleware_StoresClientIP(t *testing.T) {
	var got string
	handler := Middleware(Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = GetClientIP(r)
		}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.50", got)
}

func TestGetClientIP_WithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.1:5555"
	assert.Equal(t, "198.51.100.1", GetClientIP(req))
}
