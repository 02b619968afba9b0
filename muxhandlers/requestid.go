package muxhandlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/net/http/httpguts"
)

// DefaultRequestIDHeader carries the request ID when RequestIDConfig.Header
// is empty.
const DefaultRequestIDHeader = "X-Request-ID"

// maxIncomingRequestID bounds a trusted incoming ID.
const maxIncomingRequestID = 128

// requestIDKey is the context key for the request ID.
type requestIDKey struct{}

// RequestIDFromContext returns the request ID stored by RequestIDMiddleware,
// or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}

	return ""
}

// RequestIDConfig configures RequestIDMiddleware.
type RequestIDConfig struct {
	// Header defaults to DefaultRequestIDHeader.
	Header string

	// Generate returns a new ID. Defaults to NewRequestID.
	Generate func() string

	// TrustIncoming reuses the caller's ID when it is a short, valid header
	// value. Enable it only behind a proxy that sets the header.
	TrustIncoming bool
}

// RequestIDMiddleware tags every request with an ID. The ID is stored in the
// request context and echoed in the response header.
func RequestIDMiddleware(cfg RequestIDConfig) mux.MiddlewareFunc {
	header := cfg.Header
	if header == "" {
		header = DefaultRequestIDHeader
	}

	generate := cfg.Generate
	if generate == nil {
		generate = NewRequestID
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if cfg.TrustIncoming {
				id = incomingRequestID(r.Header.Get(header))
			}

			if id == "" {
				id = generate()
			}

			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// NewRequestID returns a time-ordered UUID v7, falling back to v4 when the
// clock source fails.
func NewRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

// incomingRequestID returns v if it is a usable header value, or an empty string.
func incomingRequestID(v string) string {
	if v == "" || len(v) > maxIncomingRequestID || !httpguts.ValidHeaderFieldValue(v) {
		return ""
	}

	return v
}
