package signing

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Engine signs and verifies canonical messages with hex-encoded keys.
type Engine interface {
	// Sign returns the hex-encoded signature of message.
	Sign(privateKey string, message []byte) (string, error)

	// Verify returns nil when signature is valid for message under
	// publicKey.
	Verify(publicKey string, message []byte, signature string) error
}

// ECDSAEngine implements Engine with ECDSA over P-256 and SHA-256 using raw
// r||s signatures.
type ECDSAEngine struct{}

// Sign implements Engine.
func (ECDSAEngine) Sign(privateKey string, message []byte) (string, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(message)

	r, s, err := ecdsa.Sign(rand.Reader, key, digest[:])
	if err != nil {
		return "", err
	}

	sig := make([]byte, signatureSize)
	r.FillBytes(sig[:signatureSize/2])
	s.FillBytes(sig[signatureSize/2:])

	return hex.EncodeToString(sig), nil
}

// Verify implements Engine.
func (ECDSAEngine) Verify(publicKey string, message []byte, signature string) error {
	key, err := ParsePublicKey(publicKey)
	if err != nil {
		return err
	}

	sig, err := decodeSignature(signature)
	if err != nil {
		return err
	}

	r := new(big.Int).SetBytes(sig[:signatureSize/2])
	s := new(big.Int).SetBytes(sig[signatureSize/2:])

	digest := sha256.Sum256(message)
	if !ecdsa.Verify(key, digest[:], r, s) {
		return ErrInvalidSignature
	}

	return nil
}

// decodeSignature decodes a hex r||s signature.
func decodeSignature(signature string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not valid hex", ErrMalformedSignature)
	}

	if len(sig) != signatureSize {
		return nil, fmt.Errorf("%w: signature must be %d bytes, got %d", ErrMalformedSignature, signatureSize, len(sig))
	}

	return sig, nil
}
