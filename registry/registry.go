package registry

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/vitalvas/svcauth/signing"
	"go.uber.org/multierr"
	"golang.org/x/net/http/httpguts"
)

// ServiceRecord describes one service identity.
type ServiceRecord struct {
	// ID is the identity carried in the X-Service header.
	ID string `yaml:"id" json:"id"`

	// Keys is the key pair shared by both peers of this identity. Requests
	// are verified against Keys.Public and, unless ResponseKeys is set,
	// responses are signed with Keys.Private.
	Keys signing.KeyPair `yaml:"keys" json:"keys"`

	// ResponseKeys, when set, is a distinct key pair the server signs
	// responses with. Clients then verify responses against
	// ResponseKeys.Public instead of their own public key.
	ResponseKeys *signing.KeyPair `yaml:"response_keys,omitempty" json:"response_keys,omitempty"`

	// ExemptEncryption disables request and response signatures for this
	// identity.
	ExemptEncryption bool `yaml:"exempt_encryption,omitempty" json:"exempt_encryption,omitempty"`

	// ExemptAddress, when set on an exempt record, is the only source
	// address requests for this identity are accepted from.
	ExemptAddress string `yaml:"exempt_address,omitempty" json:"exempt_address,omitempty"`
}

// Validate reports every problem with the record.
func (r ServiceRecord) Validate() error {
	var err error

	if !ValidIdentity(r.ID) {
		err = multierr.Append(err, fmt.Errorf("%w: %q", ErrInvalidIdentity, r.ID))
	}

	if !r.ExemptEncryption || r.Keys.Public != "" {
		if kerr := r.Keys.Validate(); kerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: keys: %w", ErrInvalidRecord, kerr))
		}
	}

	if !r.ExemptEncryption && r.ResponseSigningKey() == "" {
		err = multierr.Append(err, fmt.Errorf("%w: a private key is required to sign responses", ErrInvalidRecord))
	}

	if r.ResponseKeys != nil {
		if r.ResponseKeys.Private == "" {
			err = multierr.Append(err, fmt.Errorf("%w: response_keys: private key required", ErrInvalidRecord))
		} else if kerr := r.ResponseKeys.Validate(); kerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: response_keys: %w", ErrInvalidRecord, kerr))
		}
	}

	if r.ExemptAddress != "" {
		if !r.ExemptEncryption {
			err = multierr.Append(err, fmt.Errorf("%w: exempt_address requires exempt_encryption", ErrInvalidRecord))
		}

		if _, perr := netip.ParseAddr(r.ExemptAddress); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: exempt_address %q is not an IP address", ErrInvalidRecord, r.ExemptAddress))
		}
	}

	return err
}

// ResponseSigningKey returns the hex private key responses for this identity
// are signed with.
func (r ServiceRecord) ResponseSigningKey() string {
	if r.ResponseKeys != nil {
		return r.ResponseKeys.Private
	}

	return r.Keys.Private
}

// Clone returns a deep copy of the record.
func (r ServiceRecord) Clone() ServiceRecord {
	if r.ResponseKeys != nil {
		keys := *r.ResponseKeys
		r.ResponseKeys = &keys
	}

	return r
}

// ValidIdentity reports whether id can be used as a service identity.
func ValidIdentity(id string) bool {
	if id == "" || strings.TrimSpace(id) != id {
		return false
	}

	return httpguts.ValidHeaderFieldValue(id)
}

// Registry resolves a claimed identity to its record. Implementations must be
// safe for concurrent use.
type Registry interface {
	Lookup(ctx context.Context, id string) (*ServiceRecord, error)
}

// LookupFunc adapts an ordinary function to the Registry interface.
type LookupFunc func(ctx context.Context, id string) (*ServiceRecord, error)

// Lookup calls f(ctx, id).
func (f LookupFunc) Lookup(ctx context.Context, id string) (*ServiceRecord, error) {
	return f(ctx, id)
}

// validateSet validates records and rejects duplicate identities.
func validateSet(records []ServiceRecord) error {
	var err error

	seen := make(map[string]struct{}, len(records))

	for i, rec := range records {
		if verr := rec.Validate(); verr != nil {
			err = multierr.Append(err, fmt.Errorf("services[%d]: %w", i, verr))
		}

		if _, ok := seen[rec.ID]; ok {
			err = multierr.Append(err, fmt.Errorf("services[%d]: %w: %q", i, ErrDuplicateIdentity, rec.ID))
		}

		seen[rec.ID] = struct{}{}
	}

	return err
}
