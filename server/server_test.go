package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/svcauth/registry"
	"github.com/vitalvas/svcauth/signing"
)

var fixedNow = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

const fixedDate = "Tue, 01 Jan 2019 00:00:00 GMT"

// countingEngine records how often the wrapped engine is used.
type countingEngine struct {
	signing.Engine
	signs    atomic.Int32
	verifies atomic.Int32
}

func (e *countingEngine) Sign(privateKey string, message []byte) (string, error) {
	e.signs.Add(1)
	return e.Engine.Sign(privateKey, message)
}

func (e *countingEngine) Verify(publicKey string, message []byte, signature string) error {
	e.verifies.Add(1)
	return e.Engine.Verify(publicKey, message, signature)
}

func newKeyPair(t *testing.T) signing.KeyPair {
	t.Helper()

	kp, err := signing.GenerateKeyPair()
	require.NoError(t, err)

	return kp
}

func newTestLogger() (logrus.FieldLogger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	return log, hook
}

type testEnv struct {
	auth   *Authenticator
	engine *countingEngine
	hook   *test.Hook
}

func newTestEnv(t *testing.T, records ...registry.ServiceRecord) *testEnv {
	t.Helper()

	reg, err := registry.NewMemory(records...)
	require.NoError(t, err)

	engine := &countingEngine{Engine: signing.ECDSAEngine{}}
	log, hook := newTestLogger()

	auth, err := NewAuthenticator(Config{
		Registry: reg,
		Engine:   engine,
		Now:      func() time.Time { return fixedNow },
		Log:      log,
	})
	require.NoError(t, err)

	return &testEnv{auth: auth, engine: engine, hook: hook}
}

// signedRequest builds a request to http://example.com{target} signed with kp.
func signedRequest(t *testing.T, kp signing.KeyPair, id, target, body string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(signing.HeaderDate, fixedDate)
	req.Header.Set(signing.HeaderService, id)

	sig, err := signing.ECDSAEngine{}.Sign(kp.Private, signing.CanonicalRequest(fixedDate, "http://example.com"+target, body))
	require.NoError(t, err)

	req.Header.Set(signing.HeaderSignature, sig)

	return req
}

// echoHandler returns the request body and the authenticated identity.
func echoHandler() http.Handler {
	return Handle(func(r *http.Request) (Result, error) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}

		out := Result{"body": string(body)}
		if rec := ServiceFromContext(r.Context()); rec != nil {
			out["service"] = rec.ID
		}

		return out, nil
	})
}
