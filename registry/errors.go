package registry

import "errors"

var (
	// ErrNotFound is returned when no record exists for an identity.
	ErrNotFound = errors.New("registry: service not found")

	// ErrInvalidIdentity is returned when an identity is empty or cannot be
	// carried in an HTTP header.
	ErrInvalidIdentity = errors.New("registry: invalid service identity")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("registry: invalid service record")

	// ErrDuplicateIdentity is returned when a set of records contains the
	// same identity twice.
	ErrDuplicateIdentity = errors.New("registry: duplicate service identity")

	// ErrNoMasterKey is returned when a persistent store is opened without a
	// master key.
	ErrNoMasterKey = errors.New("registry: master key must not be empty")

	// ErrSealed is returned when sealed key material cannot be opened with
	// the configured master key.
	ErrSealed = errors.New("registry: cannot unseal key material")
)
