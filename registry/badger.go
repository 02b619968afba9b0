package registry

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/vitalvas/svcauth/signing"
	"golang.org/x/crypto/chacha20poly1305"
)

const keyServicePrefix = "svc/"

// Badger is a persistent Registry backed by badger. Private keys are sealed
// with XChaCha20-Poly1305 under a key derived from the master key, with the
// service identity as associated data.
type Badger struct {
	db   *badger.DB
	aead cipher.AEAD
}

// sealedSecret is an encrypted private key with its nonce.
type sealedSecret struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// storedRecord is the JSON form of a ServiceRecord kept in badger.
type storedRecord struct {
	ID               string        `json:"id"`
	Public           string        `json:"public,omitempty"`
	Private          *sealedSecret `json:"private,omitempty"`
	ResponsePublic   string        `json:"response_public,omitempty"`
	ResponsePrivate  *sealedSecret `json:"response_private,omitempty"`
	ExemptEncryption bool          `json:"exempt_encryption,omitempty"`
	ExemptAddress    string        `json:"exempt_address,omitempty"`
}

// OpenBadger opens a badger database with opts. Use
// badger.DefaultOptions(dir) for an on-disk store or
// badger.DefaultOptions("").WithInMemory(true) for tests.
func OpenBadger(opts badger.Options, masterKey string) (*Badger, error) {
	if strings.TrimSpace(masterKey) == "" {
		return nil, ErrNoMasterKey
	}

	derived := sha256.Sum256([]byte(masterKey))

	aead, err := chacha20poly1305.NewX(derived[:])
	if err != nil {
		return nil, fmt.Errorf("init xchacha20poly1305: %w", err)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	return &Badger{db: db, aead: aead}, nil
}

// Close closes the underlying database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// Lookup implements Registry.
func (b *Badger) Lookup(ctx context.Context, id string) (*ServiceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !ValidIdentity(id) {
		return nil, ErrInvalidIdentity
	}

	var stored storedRecord

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(serviceKey(id))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	rec, err := b.open(stored)
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Put validates and stores rec, replacing any previous record.
func (b *Badger) Put(ctx context.Context, rec ServiceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := rec.Validate(); err != nil {
		return err
	}

	stored, err := b.seal(rec)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(serviceKey(rec.ID), payload)
	})
}

// Delete removes the record for id.
func (b *Badger) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(serviceKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}

			return err
		}

		return txn.Delete(serviceKey(id))
	})
}

// List returns every stored record in key order.
func (b *Badger) List(ctx context.Context) ([]ServiceRecord, error) {
	var stored []storedRecord

	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyServicePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var rec storedRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}

			stored = append(stored, rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]ServiceRecord, 0, len(stored))
	for _, s := range stored {
		rec, err := b.open(s)
		if err != nil {
			return nil, err
		}

		out = append(out, rec)
	}

	return out, nil
}

// Load returns a Memory registry populated from the store, for deployments
// that prefer lock-free lookups over reading the database per request.
func (b *Badger) Load(ctx context.Context) (*Memory, error) {
	records, err := b.List(ctx)
	if err != nil {
		return nil, err
	}

	return NewMemory(records...)
}

// seal encrypts the private keys of rec.
func (b *Badger) seal(rec ServiceRecord) (storedRecord, error) {
	stored := storedRecord{
		ID:               rec.ID,
		Public:           rec.Keys.Public,
		ExemptEncryption: rec.ExemptEncryption,
		ExemptAddress:    rec.ExemptAddress,
	}

	var err error

	if rec.Keys.Private != "" {
		if stored.Private, err = b.sealSecret(rec.ID, rec.Keys.Private); err != nil {
			return storedRecord{}, err
		}
	}

	if rec.ResponseKeys != nil {
		stored.ResponsePublic = rec.ResponseKeys.Public

		if stored.ResponsePrivate, err = b.sealSecret(rec.ID, rec.ResponseKeys.Private); err != nil {
			return storedRecord{}, err
		}
	}

	return stored, nil
}

// open decrypts the private keys of stored.
func (b *Badger) open(stored storedRecord) (ServiceRecord, error) {
	rec := ServiceRecord{
		ID:               stored.ID,
		ExemptEncryption: stored.ExemptEncryption,
		ExemptAddress:    stored.ExemptAddress,
	}

	rec.Keys.Public = stored.Public

	var err error

	if stored.Private != nil {
		if rec.Keys.Private, err = b.openSecret(stored.ID, stored.Private); err != nil {
			return ServiceRecord{}, err
		}
	}

	if stored.ResponsePublic != "" {
		rec.ResponseKeys = &signing.KeyPair{Public: stored.ResponsePublic}

		if stored.ResponsePrivate != nil {
			if rec.ResponseKeys.Private, err = b.openSecret(stored.ID, stored.ResponsePrivate); err != nil {
				return ServiceRecord{}, err
			}
		}
	}

	return rec, nil
}

// sealSecret encrypts plaintext bound to the service id.
func (b *Badger) sealSecret(id, plaintext string) (*sealedSecret, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	ciphertext := b.aead.Seal(nil, nonce, []byte(plaintext), []byte(id))

	return &sealedSecret{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// openSecret decrypts secret bound to the service id.
func (b *Badger) openSecret(id string, secret *sealedSecret) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(secret.Nonce)
	if err != nil {
		return "", fmt.Errorf("%w: %q: invalid nonce", ErrSealed, id)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(secret.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %q: invalid ciphertext", ErrSealed, id)
	}

	if len(nonce) != b.aead.NonceSize() {
		return "", fmt.Errorf("%w: %q: invalid nonce size", ErrSealed, id)
	}

	plaintext, err := b.aead.Open(nil, nonce, ciphertext, []byte(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrSealed, id)
	}

	return string(plaintext), nil
}

// serviceKey returns the badger key for id.
func serviceKey(id string) []byte {
	return []byte(keyServicePrefix + id)
}
