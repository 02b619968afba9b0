package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/svcauth/registry"
	"github.com/vitalvas/svcauth/signing"
)

// Config configures an Authenticator.
type Config struct {
	// Identity is sent in X-Service. Required.
	Identity string

	// Keys is the caller's key pair. The private half signs requests; the
	// public half verifies responses unless ServerPublicKey is set. Unused
	// when Exempt is true.
	Keys signing.KeyPair

	// Exempt disables request signing and response verification.
	Exempt bool

	// ServerPublicKey, when set, verifies responses instead of
	// Keys.Public. Use it when the server holds a distinct response key
	// pair for this identity.
	ServerPublicKey string

	// Engine signs and verifies canonical messages. Defaults to
	// signing.ECDSAEngine.
	Engine signing.Engine

	// Now returns the time stamped into Date headers. Defaults to time.Now.
	Now func() time.Time

	// Log defaults to the logrus standard logger.
	Log logrus.FieldLogger
}

// Authenticator signs outbound requests and verifies the responses to them.
// It holds no per-request state and is safe for concurrent use.
type Authenticator struct {
	identity  string
	keys      signing.KeyPair
	exempt    bool
	verifyKey string
	engine    signing.Engine
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewAuthenticator validates cfg and returns an Authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if !registry.ValidIdentity(cfg.Identity) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentity, cfg.Identity)
	}

	a := &Authenticator{
		identity:  cfg.Identity,
		keys:      cfg.Keys,
		exempt:    cfg.Exempt,
		verifyKey: cfg.ServerPublicKey,
		engine:    cfg.Engine,
		now:       cfg.Now,
		log:       cfg.Log,
	}

	if a.verifyKey == "" {
		a.verifyKey = cfg.Keys.Public
	}

	if !a.exempt {
		if err := cfg.Keys.Validate(); err != nil {
			return nil, err
		}

		if _, err := signing.ParsePrivateKey(cfg.Keys.Private); err != nil {
			return nil, err
		}

		if _, err := signing.ParsePublicKey(a.verifyKey); err != nil {
			return nil, err
		}
	}

	if a.engine == nil {
		a.engine = signing.ECDSAEngine{}
	}

	if a.now == nil {
		a.now = time.Now
	}

	if a.log == nil {
		a.log = logrus.NewEntry(logrus.StandardLogger())
	}

	a.log = a.log.WithField("service", a.identity)

	return a, nil
}

// Identity returns the identity sent in X-Service.
func (a *Authenticator) Identity() string {
	return a.identity
}

// SignRequest sets Date and X-Service on r and, unless exempt, X-Signature.
// The body is read and replaced so it can still be sent.
func (a *Authenticator) SignRequest(r *http.Request) error {
	date := signing.FormatDate(a.now())

	r.Header.Set(signing.HeaderDate, date)
	r.Header.Set(signing.HeaderService, a.identity)

	body, err := readAndRestoreRequestBody(r)
	if err != nil {
		return err
	}

	canon := signing.CanonicalRequest(date, canonicalURL(r.URL), string(body))
	a.log.WithField("canonical", string(canon)).Debug("canonical request")

	if a.exempt {
		return nil
	}

	sig, err := a.engine.Sign(a.keys.Private, canon)
	if err != nil {
		return err
	}

	r.Header.Set(signing.HeaderSignature, sig)

	return nil
}

// VerifyResponse checks the signature of a 200 response. Other statuses and
// exempt identities are not verified. The body is read and replaced.
func (a *Authenticator) VerifyResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusOK {
		a.log.WithField("status", resp.StatusCode).Debug("skipping validation of non-200 response")
		return nil
	}

	if a.exempt {
		a.log.Debug("exempt from signing, skipping response validation")
		return nil
	}

	if resp.Request == nil || resp.Request.URL == nil {
		return fmt.Errorf("%w: response has no request", ErrResponseSignature)
	}

	sig := resp.Header.Get(signing.HeaderSignature)
	if sig == "" {
		return fmt.Errorf("%w: missing %s header", ErrResponseSignature, signing.HeaderSignature)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		return err
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))

	canon := signing.CanonicalResponse(a.identity, resp.Header.Get(signing.HeaderDate), canonicalURL(resp.Request.URL), string(body))
	a.log.WithFields(logrus.Fields{"canonical": string(canon), "signature": sig}).Debug("validating response signature")

	if err := a.engine.Verify(a.verifyKey, canon, sig); err != nil {
		a.log.WithError(err).Warn("invalid response signature")
		return fmt.Errorf("%w: %w", ErrResponseSignature, err)
	}

	return nil
}

// canonicalURL returns the URL as the server will reconstruct it. An empty
// path is sent as "/".
func canonicalURL(u *url.URL) string {
	if u.Path == "" && u.Opaque == "" {
		c := *u
		c.Path = "/"
		u = &c
	}

	return u.String()
}

// readAndRestoreRequestBody reads the request body and replaces it with an
// in-memory copy. A nil body reads as empty.
func readAndRestoreRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	r.Body.Close()

	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}

	return body, nil
}
