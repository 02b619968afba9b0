package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

var uuidV7Regex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		config   RequestIDConfig
		incoming string
		want     string
	}{
		{
			name: "generates uuid v7",
		},
		{
			name:     "ignores incoming by default",
			incoming: "from-client",
		},
		{
			name:     "trusts incoming",
			config:   RequestIDConfig{TrustIncoming: true},
			incoming: "from-proxy",
			want:     "from-proxy",
		},
		{
			name:     "rejects oversized incoming",
			config:   RequestIDConfig{TrustIncoming: true},
			incoming: strings.Repeat("a", 200),
		},
		{
			name:     "rejects control characters",
			config:   RequestIDConfig{TrustIncoming: true},
			incoming: "bad\x7fid",
		},
		{
			name:   "custom generator",
			config: RequestIDConfig{Generate: func() string { return "fixed" }},
			want:   "fixed",
		},
		{
			name:   "custom header",
			config: RequestIDConfig{Header: "X-Trace-ID", Generate: func() string { return "trace-1" }},
			want:   "trace-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.config.Header
			if header == "" {
				header = DefaultRequestIDHeader
			}

			var fromContext string

			r := mux.NewRouter()
			r.HandleFunc("/test", func(_ http.ResponseWriter, req *http.Request) {
				fromContext = RequestIDFromContext(req.Context())
			})
			r.Use(RequestIDMiddleware(tt.config))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incoming != "" {
				req.Header.Set(header, tt.incoming)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(header)
			assert.Equal(t, got, fromContext)

			if tt.want != "" {
				assert.Equal(t, tt.want, got)
			} else {
				assert.Regexp(t, uuidV7Regex, got)
			}
		})
	}
}

func TestRequestIDFromContextEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, RequestIDFromContext(req.Context()))
}

func TestNewRequestIDUnique(t *testing.T) {
	seen := make(map[string]struct{})

	for range 1000 {
		id := NewRequestID()
		assert.NotContains(t, seen, id)
		seen[id] = struct{}{}
	}
}
