package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyHeadersMiddlewareInvalidConfig(t *testing.T) {
	for _, entry := range []string{"not-an-ip", "10.0.0.0/33", ""} {
		t.Run(entry, func(t *testing.T) {
			mw, err := ProxyHeadersMiddleware(ProxyHeadersConfig{TrustedProxies: []string{entry}})
			assert.ErrorIs(t, err, ErrInvalidProxy)
			assert.Nil(t, mw)
		})
	}
}

func TestProxyHeadersMiddleware(t *testing.T) {
	type seen struct {
		remoteAddr string
		scheme     string
		host       string
	}

	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       seen
	}{
		{
			name:       "untrusted peer is ignored",
			remoteAddr: "203.0.113.5:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Forwarded-Proto": "https", "X-Forwarded-Host": "api.example.com"},
			want:       seen{remoteAddr: "203.0.113.5:4000", host: "example.com"},
		},
		{
			name:       "trusted peer",
			remoteAddr: "10.0.0.2:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1", "X-Forwarded-Proto": "HTTPS", "X-Forwarded-Host": "api.example.com"},
			want:       seen{remoteAddr: "198.51.100.1", scheme: "https", host: "api.example.com"},
		},
		{
			name:       "rightmost untrusted hop wins",
			remoteAddr: "10.0.0.2:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.1, 10.0.0.9"},
			want:       seen{remoteAddr: "198.51.100.1", host: "example.com"},
		},
		{
			name:       "all hops trusted",
			remoteAddr: "10.0.0.2:4000",
			headers:    map[string]string{"X-Forwarded-For": "10.1.1.1, 10.0.0.9"},
			want:       seen{remoteAddr: "10.1.1.1", host: "example.com"},
		},
		{
			name:       "garbage hop stops the walk",
			remoteAddr: "10.0.0.2:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1, junk"},
			want:       seen{remoteAddr: "10.0.0.2:4000", host: "example.com"},
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "127.0.0.1:4000",
			headers:    map[string]string{"X-Real-IP": " 198.51.100.7 "},
			want:       seen{remoteAddr: "198.51.100.7", host: "example.com"},
		},
		{
			name:       "mapped ipv4 is unmapped",
			remoteAddr: "[::1]:4000",
			headers:    map[string]string{"X-Real-IP": "::ffff:198.51.100.7"},
			want:       seen{remoteAddr: "198.51.100.7", host: "example.com"},
		},
		{
			name:       "unknown proto ignored",
			remoteAddr: "10.0.0.2:4000",
			headers:    map[string]string{"X-Forwarded-Proto": "gopher"},
			want:       seen{remoteAddr: "10.0.0.2:4000", host: "example.com"},
		},
		{
			name:       "single trusted address",
			trusted:    []string{"192.0.2.10"},
			remoteAddr: "192.0.2.10:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:       seen{remoteAddr: "198.51.100.1", host: "example.com"},
		},
		{
			name:       "default ranges replaced",
			trusted:    []string{"192.0.2.0/24"},
			remoteAddr: "10.0.0.2:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.1"},
			want:       seen{remoteAddr: "10.0.0.2:4000", host: "example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := ProxyHeadersMiddleware(ProxyHeadersConfig{TrustedProxies: tt.trusted})
			require.NoError(t, err)

			var got seen

			r := mux.NewRouter()
			r.HandleFunc("/test", func(_ http.ResponseWriter, req *http.Request) {
				got = seen{remoteAddr: req.RemoteAddr, scheme: req.URL.Scheme, host: req.Host}
			})
			r.Use(mw)

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.RemoteAddr = tt.remoteAddr

			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			r.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
