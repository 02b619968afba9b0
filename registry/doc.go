// Package registry resolves service identities to key material and exemption
// policy.
//
// A Registry is consulted once per inbound request and must be safe for
// concurrent reads. Several implementations are provided:
//
//   - Memory keeps records in an immutable map swapped atomically on every
//     update, so provisioning never races lookups.
//   - Badger persists records on disk with private keys sealed by
//     XChaCha20-Poly1305 under a master key.
//   - Cached wraps any Registry with a bounded read-through LRU.
//
// Records can be loaded from YAML with LoadFile:
//
//	services:
//	  - id: billing
//	    keys:
//	      private: 6c0f...
//	      public: 9a3e...
//	  - id: legacy-cron
//	    exempt_encryption: true
//	    exempt_address: 10.0.0.12
package registry
