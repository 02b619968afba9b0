package muxhandlers

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RecoveryConfig configures RecoveryMiddleware.
type RecoveryConfig struct {
	// Log receives the panic value and stack. Defaults to the logrus
	// standard logger.
	Log logrus.FieldLogger

	// DisableStack omits the goroutine stack from the log entry.
	DisableStack bool
}

// RecoveryMiddleware turns a panicking handler into a 500 Internal Server
// Error. http.ErrAbortHandler is re-raised so the server aborts the
// connection as usual.
func RecoveryMiddleware(cfg RecoveryConfig) mux.MiddlewareFunc {
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				entry := log.WithFields(logrus.Fields{
					"panic":      rec,
					"method":     r.Method,
					"path":       r.URL.Path,
					"request_id": RequestIDFromContext(r.Context()),
				})

				if !cfg.DisableStack {
					entry = entry.WithField("stack", string(debug.Stack()))
				}

				entry.Error("recovered from panic")

				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
