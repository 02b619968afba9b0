package client

import "net/http"

// Transport is an http.RoundTripper that signs outgoing requests and verifies
// the signatures of their responses.
type Transport struct {
	base http.RoundTripper
	auth *Authenticator
}

// NewTransport creates a Transport that delegates to base after signing. When
// base is nil, a clone of http.DefaultTransport is used, giving an
// independent connection pool. The pool is shared by every request sent
// through the Transport and is safe for concurrent use.
func NewTransport(base *http.Transport, auth *Authenticator) *Transport {
	var rt http.RoundTripper
	if base != nil {
		rt = base
	} else {
		rt = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{
		base: rt,
		auth: auth,
	}
}

// RoundTrip signs a clone of req, sends it, and verifies the response. A
// response that fails verification is closed and an error wrapping
// ErrResponseSignature is returned.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		req.Body.Close()
		clone.Body = body
	}

	if err := t.auth.SignRequest(clone); err != nil {
		if clone.Body != nil {
			clone.Body.Close()
		}

		return nil, err
	}

	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if err := t.auth.VerifyResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return resp, nil
}
