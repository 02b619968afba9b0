package server

import (
	"encoding/json"
	"errors"
	"maps"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/svcauth/signing"
)

// UpdatedField is the result key moved into the Last-Modified header.
const UpdatedField = "updated"

// Result is the output of a signed endpoint. It is serialized as a JSON
// object after UpdatedField has been removed.
type Result map[string]any

// ResultFunc produces the result of a signed endpoint.
type ResultFunc func(r *http.Request) (Result, error)

// HTTPError lets a ResultFunc choose the status code of a failure.
type HTTPError struct {
	Code    int
	Message string
}

// Error returns the message sent to the caller.
func (e *HTTPError) Error() string {
	return e.Message
}

// Error returns an *HTTPError with the given status code and message.
func Error(code int, message string) error {
	return &HTTPError{Code: code, Message: message}
}

// Handler adapts a ResultFunc to an http.Handler. Responses pass through
// Middleware, which signs them.
type Handler struct {
	Func ResultFunc

	// Log receives handler failures. Defaults to the logrus standard logger.
	Log logrus.FieldLogger
}

// Handle returns a Handler for fn with the default logger.
func Handle(fn ResultFunc) *Handler {
	return &Handler{Func: fn}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := h.Func(r)
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			http.Error(w, httpErr.Message, httpErr.Code)
			return
		}

		logger(h.Log).WithError(err).WithField("path", r.URL.Path).Error("handler failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	body, lastModified, err := renderResult(result)
	if err != nil {
		logger(h.Log).WithError(err).WithField("path", r.URL.Path).Error("cannot encode result")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

		return
	}

	if lastModified != "" {
		w.Header().Set("Last-Modified", lastModified)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(body); err != nil {
		logger(h.Log).WithError(err).WithField("path", r.URL.Path).Debug("cannot write response")
	}
}

// renderResult removes UpdatedField from a copy of result and encodes the
// remainder as JSON.
func renderResult(result Result) ([]byte, string, error) {
	out := maps.Clone(result)
	if out == nil {
		out = Result{}
	}

	updated, ok := out[UpdatedField]
	delete(out, UpdatedField)

	lastModified := ""
	if ok {
		lastModified = formatUpdated(updated)
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, "", err
	}

	return body, lastModified, nil
}

// formatUpdated renders the supported UpdatedField values as an HTTP date.
// Unsupported values are dropped.
func formatUpdated(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}

		return signing.FormatDate(t)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}

		return signing.FormatDate(*t)
	case int64:
		return signing.FormatDate(time.Unix(t, 0))
	case int:
		return signing.FormatDate(time.Unix(int64(t), 0))
	case float64:
		return signing.FormatDate(time.Unix(int64(t), 0))
	case string:
		return t
	default:
		return ""
	}
}
