package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/vitalvas/svcauth/muxhandlers"
	"github.com/vitalvas/svcauth/signing"
)

// DefaultMaxBodyBytes caps the request body read for canonicalization when
// MiddlewareConfig.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 1 << 20

// MiddlewareConfig configures the server-side authentication middleware.
type MiddlewareConfig struct {
	// Authenticator verifies requests and signs responses. Required.
	Authenticator *Authenticator

	// URLFunc returns the absolute URL the caller signed. Defaults to
	// RequestURL. Override it when the public URL differs from what the
	// server observes.
	URLFunc func(r *http.Request) string

	// MaxBodyBytes caps the request body size. Larger bodies are answered
	// with 413 Request Entity Too Large. Defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// OnError is called when authentication fails. When nil, a 400 Bad
	// Request with the fixed Reason message is sent.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware returns a mux.MiddlewareFunc that authenticates every request
// before the handler runs and signs the handler's 200 responses afterwards.
// The resolved record is available to handlers through ServiceFromContext.
//
// It returns ErrNoAuthenticator if MiddlewareConfig.Authenticator is nil.
func Middleware(cfg MiddlewareConfig) (mux.MiddlewareFunc, error) {
	if cfg.Authenticator == nil {
		return nil, ErrNoAuthenticator
	}

	auth := cfg.Authenticator

	urlFunc := cfg.URLFunc
	if urlFunc == nil {
		urlFunc = RequestURL
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	onError := cfg.OnError
	if onError == nil {
		onError = defaultOnError
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := auth.log.WithField("request_id", muxhandlers.RequestIDFromContext(r.Context()))

			body, err := readAndRestoreBody(w, r, maxBody)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
					return
				}

				log.WithError(err).Warn("cannot read request body")
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

				return
			}

			url := urlFunc(r)

			rec, err := auth.AuthenticateRequest(r.Context(), InboundRequest{
				Service:    r.Header.Get(signing.HeaderService),
				Date:       r.Header.Get(signing.HeaderDate),
				Signature:  r.Header.Get(signing.HeaderSignature),
				URL:        url,
				Body:       string(body),
				RemoteAddr: r.RemoteAddr,
			})
			if err != nil {
				onError(w, r, err)
				return
			}

			buf := newResponseBuffer(w)
			next.ServeHTTP(buf, r.WithContext(withService(r.Context(), rec)))

			status := buf.statusCode()
			out := buf.body.Bytes()
			header := w.Header()

			header.Del(signing.HeaderSignature)

			if status == http.StatusOK {
				sig, err := auth.SignResponse(rec, url, out)
				if err != nil {
					log.WithError(err).Error("response left unsent")
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

					return
				}

				header.Set(signing.HeaderDate, sig.Date)

				if sig.Signature != "" {
					header.Set(signing.HeaderSignature, sig.Signature)
				}
			} else {
				header.Set(signing.HeaderDate, auth.Date())
			}

			header.Set("Content-Length", strconv.Itoa(len(out)))
			w.WriteHeader(status)

			if _, err := w.Write(out); err != nil {
				log.WithError(err).Debug("cannot write response")
			}
		})
	}, nil
}

// RequestURL reconstructs the absolute URL of r from its scheme, Host header
// and request URI. The scheme comes from r.URL.Scheme when a proxy-headers
// middleware set it, otherwise from the TLS state.
func RequestURL(r *http.Request) string {
	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "http"
		if r.TLS != nil {
			scheme = "https"
		}
	}

	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// readAndRestoreBody reads up to limit bytes of the request body and replaces
// it so the handler can read it again.
func readAndRestoreBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	r.Body.Close()

	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(body))

	return body, nil
}

// defaultOnError writes a 400 Bad Request with the fixed reason for err.
func defaultOnError(w http.ResponseWriter, _ *http.Request, err error) {
	http.Error(w, Reason(err), http.StatusBadRequest)
}

// logger returns a field logger for handlers that have none configured.
func logger(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}

	return l
}
