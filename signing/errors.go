package signing

import "errors"

var (
	// ErrMalformedKey is returned when hex key material cannot be decoded
	// into a P-256 key.
	ErrMalformedKey = errors.New("signing: malformed key")

	// ErrMalformedSignature is returned when a signature is not a hex
	// encoded 64-byte r||s value.
	ErrMalformedSignature = errors.New("signing: malformed signature")

	// ErrInvalidSignature is returned when a well-formed signature does not
	// verify against the message.
	ErrInvalidSignature = errors.New("signing: signature verification failed")

	// ErrKeyMismatch is returned when the private and public halves of a
	// KeyPair are different points.
	ErrKeyMismatch = errors.New("signing: private and public keys do not match")
)
