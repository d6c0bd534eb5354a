package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/adeilh/go-trakt/cache"
)

var (
	ErrSealedPassphrase = errors.New("auth: sealed store passphrase is empty")
	ErrSealedCorrupt    = errors.New("auth: sealed value cannot be opened")
)

// DefaultSealSalt is mixed into the key derivation. Changing it makes every
// value sealed under the old salt unreadable.
const DefaultSealSalt = "go-trakt/sealed-store/v1"

// Argon2id parameters for deriving the sealing key from a passphrase.
const (
	sealArgonTime    = 1
	sealArgonMemory  = 64 * 1024
	sealArgonThreads = 4
)

// SealedStore encrypts values with XChaCha20-Poly1305 before handing them to
// the wrapped store. The key name is bound as additional data so a value
// cannot be replayed under a different key.
type SealedStore struct {
	inner cache.Store
	key   []byte
}

// NewSealedStore derives a 256-bit key from passphrase with Argon2id.
func NewSealedStore(inner cache.Store, passphrase []byte, salt string) (*SealedStore, error) {
	if len(passphrase) == 0 {
		return nil, ErrSealedPassphrase
	}
	if salt == "" {
		salt = DefaultSealSalt
	}
	key := argon2.IDKey(passphrase, []byte(salt), sealArgonTime, sealArgonMemory, sealArgonThreads, chacha20poly1305.KeySize)
	return &SealedStore{inner: inner, key: key}, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, sealed)
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed, ttl)
}

func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// SetMany seals every value and forwards the batch.
func (s *SealedStore) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	sealed := make(map[string][]byte, len(values))
	for k, v := range values {
		out, err := s.seal(k, v)
		if err != nil {
			return err
		}
		sealed[k] = out
	}
	return cache.SetMany(ctx, s.inner, sealed, ttl)
}

// Close closes the wrapped store when it supports closing.
func (s *SealedStore) Close() error {
	return cache.Close(s.inner)
}

func (s *SealedStore) seal(key string, plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("auth: sealed store cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plain)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("auth: sealed store nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plain, []byte(key)), nil
}

func (s *SealedStore) open(key string, sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("auth: sealed store cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedCorrupt
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return nil, ErrSealedCorrupt
	}
	return plain, nil
}
