package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	privateKeySize = 32
	publicKeySize  = 64
	signatureSize  = 64

	uncompressedPrefix = 0x04
)

// KeyPair holds hex-encoded P-256 key material for one service identity.
type KeyPair struct {
	Private string `yaml:"private,omitempty" json:"private,omitempty"`
	Public  string `yaml:"public" json:"public"`
}

// GenerateKeyPair creates a fresh P-256 key pair.
func GenerateKeyPair() (KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}

	private, err := EncodePrivateKey(key)
	if err != nil {
		return KeyPair{}, err
	}

	public, err := EncodePublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}

	return KeyPair{Private: private, Public: public}, nil
}

// Validate checks that the public key parses and, when a private key is
// present, that both halves describe the same curve point.
func (kp KeyPair) Validate() error {
	pub, err := ParsePublicKey(kp.Public)
	if err != nil {
		return err
	}

	if kp.Private == "" {
		return nil
	}

	priv, err := ParsePrivateKey(kp.Private)
	if err != nil {
		return err
	}

	if !priv.PublicKey.Equal(pub) {
		return ErrKeyMismatch
	}

	return nil
}

// ParsePrivateKey decodes a hex-encoded 32-byte P-256 scalar.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not valid hex", ErrMalformedKey)
	}

	if len(raw) != privateKeySize {
		return nil, fmt.Errorf("%w: private key must be %d bytes, got %d", ErrMalformedKey, privateKeySize, len(raw))
	}

	key, err := ecdsa.ParseRawPrivateKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	return key, nil
}

// ParsePublicKey decodes a hex-encoded P-256 point. Both the 64-byte X||Y form
// and the 65-byte SEC1 uncompressed form are accepted.
func ParsePublicKey(hexKey string) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not valid hex", ErrMalformedKey)
	}

	switch len(raw) {
	case publicKeySize:
		raw = append([]byte{uncompressedPrefix}, raw...)
	case publicKeySize + 1:
		if raw[0] != uncompressedPrefix {
			return nil, fmt.Errorf("%w: public key is not in uncompressed form", ErrMalformedKey)
		}
	default:
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrMalformedKey, publicKeySize, len(raw))
	}

	key, err := ecdsa.ParseUncompressedPublicKey(elliptic.P256(), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	return key, nil
}

// EncodePrivateKey returns the hex-encoded raw scalar of key.
func EncodePrivateKey(key *ecdsa.PrivateKey) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: private key must not be nil", ErrMalformedKey)
	}

	raw, err := key.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	return hex.EncodeToString(raw), nil
}

// EncodePublicKey returns the hex-encoded 64-byte X||Y form of key.
func EncodePublicKey(key *ecdsa.PublicKey) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: public key must not be nil", ErrMalformedKey)
	}

	raw, err := key.Bytes()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedKey, err)
	}

	return hex.EncodeToString(raw[1:]), nil
}
