// Package signing builds the canonical messages exchanged between services
// and signs or verifies them with ECDSA over NIST P-256 and SHA-256.
//
// # Canonical Messages
//
// A request is signed over its Date header, absolute URL and body joined by
// newlines. A response additionally carries the service identity in front:
//
//	request:  "{date}\n{url}\n{body}"
//	response: "{identity}\n{date}\n{url}\n{body}"
//
// No normalization is applied. Signer and verifier must see byte-identical
// fields or verification fails closed.
//
// # Key Material
//
// Keys and signatures travel as hex strings using the raw encodings:
//
//   - private key: 32-byte big-endian scalar
//   - public key: 64-byte X||Y point (65-byte 0x04-prefixed form accepted)
//   - signature: 64-byte r||s
//
// Generate a key pair and sign a request:
//
//	kp, err := signing.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	msg := signing.CanonicalRequest(date, "https://api.example/foo", "a=1")
//	sig, err := signing.ECDSAEngine{}.Sign(kp.Private, msg)
//
// Verification never panics on hostile input. Malformed hex, wrong lengths and
// points off the curve are reported as ErrMalformedKey or
// ErrMalformedSignature; a well-formed signature that does not match is
// reported as ErrInvalidSignature.
package signing
