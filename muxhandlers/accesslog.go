package muxhandlers

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// AccessLogConfig configures AccessLogMiddleware.
type AccessLogConfig struct {
	// Log defaults to the logrus standard logger.
	Log logrus.FieldLogger

	// SkipPaths are not logged. Useful for health checks and scrapes.
	SkipPaths []string
}

// AccessLogMiddleware logs one entry per request after the handler returns.
// Server errors are logged at error level, everything else at info.
func AccessLogMiddleware(cfg AccessLogConfig) mux.MiddlewareFunc {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	skip := slices.Clone(cfg.SkipPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(skip, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}

			next.ServeHTTP(sw, r)

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      sw.status(),
				"bytes":       sw.written,
				"duration_ms": time.Since(start).Milliseconds(),
				"remote_addr": r.RemoteAddr,
				"request_id":  RequestIDFromContext(r.Context()),
			})

			if sw.status() >= http.StatusInternalServerError {
				entry.Error("request")
			} else {
				entry.Info("request")
			}
		})
	}
}

// statusWriter records the status code and byte count written by the handler.
type statusWriter struct {
	http.ResponseWriter
	code    int
	written int64
}

// WriteHeader records code and forwards it.
func (w *statusWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}

	w.ResponseWriter.WriteHeader(code)
}

// Write counts the bytes written, implying a 200 status.
func (w *statusWriter) Write(p []byte) (int, error) {
	if w.code == 0 {
		w.code = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)

	return n, err
}

// status returns the recorded status, defaulting to 200.
func (w *statusWriter) status() int {
	if w.code == 0 {
		return http.StatusOK
	}

	return w.code
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
