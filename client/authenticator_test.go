package client

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/svcauth/signing"
)

const fixedDate = "Tue, 01 Jan 2019 00:00:00 GMT"

func fixedNow() time.Time {
	return time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func newKeyPair(t *testing.T) signing.KeyPair {
	t.Helper()

	kp, err := signing.GenerateKeyPair()
	require.NoError(t, err)

	return kp
}

func nullLogger() logrus.FieldLogger {
	log, _ := test.NewNullLogger()
	return log
}

func newTestAuthenticator(t *testing.T, cfg Config) *Authenticator {
	t.Helper()

	if cfg.Now == nil {
		cfg.Now = fixedNow
	}

	if cfg.Log == nil {
		cfg.Log = nullLogger()
	}

	a, err := NewAuthenticator(cfg)
	require.NoError(t, err)

	return a
}

func TestNewAuthenticator(t *testing.T) {
	kp := newKeyPair(t)
	other := newKeyPair(t)

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{
			name: "shared key pair",
			cfg:  Config{Identity: "svc-1", Keys: kp},
		},
		{
			name: "server public key",
			cfg:  Config{Identity: "svc-1", Keys: kp, ServerPublicKey: other.Public},
		},
		{
			name: "exempt without keys",
			cfg:  Config{Identity: "cron", Exempt: true},
		},
		{
			name:    "empty identity",
			cfg:     Config{Keys: kp},
			wantErr: ErrInvalidIdentity,
		},
		{
			name:    "identity with newline",
			cfg:     Config{Identity: "svc\n1", Keys: kp},
			wantErr: ErrInvalidIdentity,
		},
		{
			name:    "missing private key",
			cfg:     Config{Identity: "svc-1", Keys: signing.KeyPair{Public: kp.Public}},
			wantErr: signing.ErrMalformedKey,
		},
		{
			name:    "mismatched halves",
			cfg:     Config{Identity: "svc-1", Keys: signing.KeyPair{Private: kp.Private, Public: other.Public}},
			wantErr: signing.ErrKeyMismatch,
		},
		{
			name:    "malformed server key",
			cfg:     Config{Identity: "svc-1", Keys: kp, ServerPublicKey: "abcd"},
			wantErr: signing.ErrMalformedKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewAuthenticator(tt.cfg)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, a)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Identity, a.Identity())
		})
	}
}

func TestSignRequest(t *testing.T) {
	kp := newKeyPair(t)
	a := newTestAuthenticator(t, Config{Identity: "svc-1", Keys: kp})

	t.Run("form body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, "http://svc.local/api/echo", strings.NewReader("a=1&b=2"))
		require.NoError(t, err)

		require.NoError(t, a.SignRequest(req))

		assert.Equal(t, fixedDate, req.Header.Get(signing.HeaderDate))
		assert.Equal(t, "svc-1", req.Header.Get(signing.HeaderService))

		canon := signing.CanonicalRequest(fixedDate, "http://svc.local/api/echo", "a=1&b=2")
		assert.NoError(t, signing.ECDSAEngine{}.Verify(kp.Public, canon, req.Header.Get(signing.HeaderSignature)))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, "a=1&b=2", string(body))
		assert.Equal(t, int64(7), req.ContentLength)
	})

	t.Run("nil body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, "http://svc.local/api/time?tz=UTC", nil)
		require.NoError(t, err)

		require.NoError(t, a.SignRequest(req))

		canon := signing.CanonicalRequest(fixedDate, "http://svc.local/api/time?tz=UTC", "")
		assert.NoError(t, signing.ECDSAEngine{}.Verify(kp.Public, canon, req.Header.Get(signing.HeaderSignature)))
	})

	t.Run("empty path signs as root", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, "http://svc.local", nil)
		require.NoError(t, err)

		require.NoError(t, a.SignRequest(req))

		canon := signing.CanonicalRequest(fixedDate, "http://svc.local/", "")
		assert.NoError(t, signing.ECDSAEngine{}.Verify(kp.Public, canon, req.Header.Get(signing.HeaderSignature)))
	})

	t.Run("exempt", func(t *testing.T) {
		exempt := newTestAuthenticator(t, Config{Identity: "cron", Exempt: true})

		req, err := http.NewRequest(http.MethodPost, "http://svc.local/api/echo", strings.NewReader("x"))
		require.NoError(t, err)

		require.NoError(t, exempt.SignRequest(req))

		assert.Equal(t, fixedDate, req.Header.Get(signing.HeaderDate))
		assert.Equal(t, "cron", req.Header.Get(signing.HeaderService))
		assert.Empty(t, req.Header.Get(signing.HeaderSignature))
	})
}

func TestSignRequestLogsCanonical(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	a := newTestAuthenticator(t, Config{Identity: "svc-1", Keys: newKeyPair(t), Log: log})

	req, err := http.NewRequest(http.MethodPost, "http://svc.local/api/echo", strings.NewReader("a=1"))
	require.NoError(t, err)
	require.NoError(t, a.SignRequest(req))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, fixedDate+"\nhttp://svc.local/api/echo\na=1", entry.Data["canonical"])
	assert.Equal(t, "svc-1", entry.Data["service"])
}

// signedResponse builds a response to a request for target signed with kp.
func signedResponse(t *testing.T, kp signing.KeyPair, id, target, body string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, nil)

	sig, err := signing.ECDSAEngine{}.Sign(kp.Private, signing.CanonicalResponse(id, fixedDate, target, body))
	require.NoError(t, err)

	header := http.Header{}
	header.Set(signing.HeaderDate, fixedDate)
	header.Set(signing.HeaderSignature, sig)

	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func TestVerifyResponse(t *testing.T) {
	kp := newKeyPair(t)
	other := newKeyPair(t)
	a := newTestAuthenticator(t, Config{Identity: "svc-1", Keys: kp})

	const target = "http://svc.local/api/echo"

	t.Run("valid", func(t *testing.T) {
		resp := signedResponse(t, kp, "svc-1", target, `{"ok":true}`)

		require.NoError(t, a.VerifyResponse(resp))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"ok":true}`, string(body))
	})

	tests := []struct {
		name   string
		resp   func(t *testing.T) *http.Response
		wantIs []error
	}{
		{
			name: "missing signature",
			resp: func(t *testing.T) *http.Response {
				resp := signedResponse(t, kp, "svc-1", target, "{}")
				resp.Header.Del(signing.HeaderSignature)
				return resp
			},
			wantIs: []error{ErrResponseSignature},
		},
		{
			name: "other identity",
			resp: func(t *testing.T) *http.Response {
				return signedResponse(t, kp, "svc-2", target, "{}")
			},
			wantIs: []error{ErrResponseSignature, signing.ErrInvalidSignature},
		},
		{
			name: "other key",
			resp: func(t *testing.T) *http.Response {
				return signedResponse(t, other, "svc-1", target, "{}")
			},
			wantIs: []error{ErrResponseSignature, signing.ErrInvalidSignature},
		},
		{
			name: "tampered body",
			resp: func(t *testing.T) *http.Response {
				resp := signedResponse(t, kp, "svc-1", target, "{}")
				resp.Body = io.NopCloser(bytes.NewReader([]byte(`{"admin":true}`)))
				return resp
			},
			wantIs: []error{ErrResponseSignature, signing.ErrInvalidSignature},
		},
		{
			name: "tampered date",
			resp: func(t *testing.T) *http.Response {
				resp := signedResponse(t, kp, "svc-1", target, "{}")
				resp.Header.Set(signing.HeaderDate, "Wed, 02 Jan 2019 00:00:00 GMT")
				return resp
			},
			wantIs: []error{ErrResponseSignature, signing.ErrInvalidSignature},
		},
		{
			name: "malformed signature",
			resp: func(t *testing.T) *http.Response {
				resp := signedResponse(t, kp, "svc-1", target, "{}")
				resp.Header.Set(signing.HeaderSignature, "xyz")
				return resp
			},
			wantIs: []error{ErrResponseSignature, signing.ErrMalformedSignature},
		},
		{
			name: "no request",
			resp: func(t *testing.T) *http.Response {
				resp := signedResponse(t, kp, "svc-1", target, "{}")
				resp.Request = nil
				return resp
			},
			wantIs: []error{ErrResponseSignature},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.VerifyResponse(tt.resp(t))

			for _, want := range tt.wantIs {
				assert.ErrorIs(t, err, want)
			}
		})
	}

	t.Run("non-200 is not verified", func(t *testing.T) {
		resp := signedResponse(t, other, "svc-1", target, "{}")
		resp.StatusCode = http.StatusNotFound
		resp.Header.Del(signing.HeaderSignature)

		assert.NoError(t, a.VerifyResponse(resp))
	})

	t.Run("exempt is not verified", func(t *testing.T) {
		exempt := newTestAuthenticator(t, Config{Identity: "cron", Exempt: true})

		resp := signedResponse(t, other, "cron", target, "{}")
		resp.Header.Del(signing.HeaderSignature)

		assert.NoError(t, exempt.VerifyResponse(resp))
	})

	t.Run("server public key", func(t *testing.T) {
		hardened := newTestAuthenticator(t, Config{Identity: "svc-1", Keys: kp, ServerPublicKey: other.Public})

		assert.NoError(t, hardened.VerifyResponse(signedResponse(t, other, "svc-1", target, "{}")))
		assert.ErrorIs(t, hardened.VerifyResponse(signedResponse(t, kp, "svc-1", target, "{}")), ErrResponseSignature)
	})
}
