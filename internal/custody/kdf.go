package custody

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters.
const (
	KDFIterations = 390000
	KeySize       = 32
	SaltSize      = 16
)

// DeriveKey stretches passphrase and salt into a KeySize-byte cipher key
// with PBKDF2-HMAC-SHA256. The result must never be persisted or logged.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, KDFIterations, KeySize, sha256.New)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("read random salt: %w", err)
	}
	return salt, nil
}
