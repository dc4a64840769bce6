// Package secrets seals connection credentials before they are stored.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Errors returned by the sealer
var (
	ErrEmptyMasterKey = errors.New("secrets: master key is empty")
	ErrSealedTooShort = errors.New("secrets: sealed value is too short")
	ErrOpenFailed     = errors.New("secrets: sealed value could not be opened")
)

// Sealer encrypts small secrets with a key derived from the master key.
// Sealed values are the random nonce followed by the secretbox output.
type Sealer struct {
	key [32]byte
}

// NewSealer creates a Sealer from the configured master key
func NewSealer(masterKey string) (*Sealer, error) {
	if masterKey == "" {
		return nil, ErrEmptyMasterKey
	}
	return &Sealer{key: sha256.Sum256([]byte(masterKey))}, nil
}

// Seal encrypts plaintext
func (s *Sealer) Seal(plaintext string) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal
func (s *Sealer) Open(sealed []byte) (string, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", ErrSealedTooShort
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrOpenFailed
	}
	return string(plain), nil
}
