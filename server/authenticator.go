package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitalvas/svcauth/registry"
	"github.com/vitalvas/svcauth/signing"
)

// Config configures an Authenticator.
type Config struct {
	// Registry resolves X-Service identities. Required.
	Registry registry.Registry

	// Engine signs and verifies canonical messages. Defaults to
	// signing.ECDSAEngine.
	Engine signing.Engine

	// Now returns the current time for response Date headers. Defaults to
	// time.Now.
	Now func() time.Time

	// Log receives operator-facing details of every decision. Defaults to
	// the logrus standard logger.
	Log logrus.FieldLogger

	// Metrics, when set, counts authentication outcomes.
	Metrics *Metrics
}

// InboundRequest holds the fields of a request that take part in
// authentication.
type InboundRequest struct {
	Service    string
	Date       string
	Signature  string
	URL        string
	Body       string
	RemoteAddr string
}

// ResponseSignature is the header pair attached to a signed response.
// Signature is empty for exempt services.
type ResponseSignature struct {
	Date      string
	Signature string
}

// Authenticator verifies inbound requests and signs their responses.
type Authenticator struct {
	registry registry.Registry
	engine   signing.Engine
	now      func() time.Time
	log      logrus.FieldLogger
	metrics  *Metrics
}

// NewAuthenticator returns an Authenticator for cfg.
//
// It returns ErrNoRegistry if Config.Registry is nil.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Registry == nil {
		return nil, ErrNoRegistry
	}

	a := &Authenticator{
		registry: cfg.Registry,
		engine:   cfg.Engine,
		now:      cfg.Now,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
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

	return a, nil
}

// AuthenticateRequest resolves the claimed identity and, unless the service
// is exempt, verifies the request signature. The registry is consulted before
// any cryptographic work.
func (a *Authenticator) AuthenticateRequest(ctx context.Context, in InboundRequest) (*registry.ServiceRecord, error) {
	rec, exempt, err := a.authenticate(ctx, in)
	a.metrics.observeRequest(err, exempt)

	return rec, err
}

// authenticate runs the request checks and reports whether the caller was exempt.
func (a *Authenticator) authenticate(ctx context.Context, in InboundRequest) (*registry.ServiceRecord, bool, error) {
	log := a.log.WithFields(logrus.Fields{
		"service":     in.Service,
		"remote_addr": in.RemoteAddr,
		"url":         in.URL,
	})

	if in.Service == "" {
		log.Error("signed request missing X-Service header")
		return nil, false, ErrMissingHeader
	}

	rec, err := a.registry.Lookup(ctx, in.Service)
	if err != nil {
		log.WithError(err).Error("cannot load service")
		return nil, false, fmt.Errorf("%w: %w", ErrUnknownService, err)
	}

	if rec == nil {
		log.Error("registry returned no record")
		return nil, false, fmt.Errorf("%w: %w", ErrUnknownService, registry.ErrNotFound)
	}

	log.WithField("canonical", string(signing.CanonicalRequest(in.Date, in.URL, in.Body))).Debug("canonical request")

	exempt, err := CheckExemption(rec, in.RemoteAddr)
	if err != nil {
		log.WithField("expected_addr", rec.ExemptAddress).Info("exempt service called from incorrect address")
		return nil, exempt, err
	}

	if exempt {
		log.Debug("request exempt from signing, skipping validation")
		return rec, true, nil
	}

	if in.Signature == "" {
		log.Error("signed request missing X-Signature header")
		return nil, false, ErrMissingHeader
	}

	start := time.Now()
	err = a.engine.Verify(rec.Keys.Public, signing.CanonicalRequest(in.Date, in.URL, in.Body), in.Signature)
	a.metrics.observeVerify(time.Since(start).Seconds())

	if err != nil {
		log.WithError(err).Info("invalid request signature")

		if errors.Is(err, signing.ErrInvalidSignature) {
			return nil, false, err
		}

		return nil, false, fmt.Errorf("%w: %w", signing.ErrInvalidSignature, err)
	}

	return rec, false, nil
}

// SignResponse stamps a response for rec at the current time. url must be the
// URL the request was authenticated against.
func (a *Authenticator) SignResponse(rec *registry.ServiceRecord, url string, body []byte) (ResponseSignature, error) {
	out := ResponseSignature{Date: signing.FormatDate(a.now())}

	canon := signing.CanonicalResponse(rec.ID, out.Date, url, string(body))

	log := a.log.WithField("service", rec.ID)
	log.WithField("canonical", string(canon)).Debug("canonical response")

	if rec.ExemptEncryption {
		a.metrics.observeResponse("exempt")
		return out, nil
	}

	sig, err := a.engine.Sign(rec.ResponseSigningKey(), canon)
	if err != nil {
		a.metrics.observeResponse("error")
		log.WithError(err).Error("cannot sign response")

		return ResponseSignature{}, err
	}

	a.metrics.observeResponse("signed")
	log.WithField("signature", sig).Debug("signed response")

	out.Signature = sig

	return out, nil
}

// Date returns the current time as an HTTP date.
func (a *Authenticator) Date() string {
	return signing.FormatDate(a.now())
}
