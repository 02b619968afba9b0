package client

import "errors"

var (
	// ErrInvalidIdentity is returned when Config.Identity cannot be sent in
	// an X-Service header.
	ErrInvalidIdentity = errors.New("client: invalid service identity")

	// ErrNoAuthenticator is returned when ClientConfig has no Authenticator.
	ErrNoAuthenticator = errors.New("client: authenticator must not be nil")

	// ErrInvalidEndpoint is returned when ClientConfig.Endpoint is not an
	// absolute http(s) URL.
	ErrInvalidEndpoint = errors.New("client: endpoint must be an absolute http or https URL")

	// ErrResponseSignature is returned when a 200 response from a
	// non-exempt service fails signature verification.
	ErrResponseSignature = errors.New("client: response signature verification failed")

	// ErrNoResult is returned when decoding a non-200 response.
	ErrNoResult = errors.New("client: no result")
)
