package server

import (
	"errors"

	"github.com/vitalvas/svcauth/signing"
)

// Authentication errors. Every one of them is answered with 400 Bad Request.
var (
	// ErrMissingHeader is returned when X-Service, or X-Signature for a
	// non-exempt service, is absent.
	ErrMissingHeader = errors.New("server: missing headers")

	// ErrUnknownService is returned when the claimed identity cannot be
	// resolved.
	ErrUnknownService = errors.New("server: unknown or invalid service identity")

	// ErrAddressMismatch is returned when an exempt service calls from an
	// address other than its configured one.
	ErrAddressMismatch = errors.New("server: incorrect source address")
)

// Configuration errors.
var (
	// ErrNoRegistry is returned when Config has no Registry.
	ErrNoRegistry = errors.New("server: registry must not be nil")

	// ErrNoAuthenticator is returned when MiddlewareConfig has no
	// Authenticator.
	ErrNoAuthenticator = errors.New("server: authenticator must not be nil")
)

// Client-facing reasons. They never carry details.
const (
	ReasonMissingHeaders   = "Missing headers."
	ReasonUnknownService   = "Unknown or invalid service identity."
	ReasonAddressMismatch  = "Incorrect IP Address."
	ReasonInvalidSignature = "Invalid request signature."
)

// Reason maps an authentication error to the fixed message sent to the
// caller.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingHeader):
		return ReasonMissingHeaders
	case errors.Is(err, ErrUnknownService):
		return ReasonUnknownService
	case errors.Is(err, ErrAddressMismatch):
		return ReasonAddressMismatch
	default:
		return ReasonInvalidSignature
	}
}

// outcome is the metrics label for an authentication result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingHeader):
		return "missing_headers"
	case errors.Is(err, ErrUnknownService):
		return "unknown_service"
	case errors.Is(err, ErrAddressMismatch):
		return "address_mismatch"
	case errors.Is(err, signing.ErrMalformedSignature), errors.Is(err, signing.ErrMalformedKey):
		return "malformed"
	default:
		return "invalid_signature"
	}
}
