// Package signer owns ed25519 wallet keys and signs pre-built Solana transactions.
package signer

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ErrInvalidKey is returned when stored key material cannot be parsed.
var ErrInvalidKey = errors.New("invalid key material")

// Keypair is an ed25519 wallet key. Secret bytes stay inside this type.
type Keypair struct {
	key solana.PrivateKey
}

// Generate creates a fresh random keypair.
func Generate() (*Keypair, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Keypair{key: key}, nil
}

// ParseKeypair decodes stored key material. Accepted forms:
//   - base58 of the 64-byte seed||pubkey keypair (current format)
//   - hex of the 64-byte keypair
//   - hex of the 32-byte seed (legacy records)
func ParseKeypair(s string) (*Keypair, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}

	if raw, err := hex.DecodeString(s); err == nil {
		switch len(raw) {
		case ed25519.SeedSize:
			return &Keypair{key: solana.PrivateKey(ed25519.NewKeyFromSeed(raw))}, nil
		case ed25519.PrivateKeySize:
			return fromRaw(raw)
		}
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), ed25519.PrivateKeySize)
	}
	return fromRaw(raw)
}

func fromRaw(raw []byte) (*Keypair, error) {
	if err := VerifyKeypair(raw); err != nil {
		return nil, err
	}
	key := make(solana.PrivateKey, len(raw))
	copy(key, raw)
	return &Keypair{key: key}, nil
}

// VerifyKeypair checks that a 64-byte seed||pubkey keypair is consistent:
// the public half must be a valid curve point derived from the seed.
func VerifyKeypair(raw []byte) error {
	if len(raw) != ed25519.PrivateKeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(raw), ed25519.PrivateKeySize)
	}
	pub := raw[ed25519.SeedSize:]
	if !IsOnCurve(pub) {
		return fmt.Errorf("%w: public key is not on curve", ErrInvalidKey)
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize]).Public().(ed25519.PublicKey)
	if !bytes.Equal(derived, pub) {
		return fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	return nil
}

// IsOnCurve reports whether b encodes a point on the ed25519 curve.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// PublicKey returns the wallet public key.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

// Address returns the base58 wallet address.
func (k *Keypair) Address() string {
	return k.key.PublicKey().String()
}

// Secret returns the base58 encoding of the 64-byte keypair, the format
// used for storage and user export.
func (k *Keypair) Secret() string {
	return base58.Encode(k.key)
}

// Zero overwrites the secret bytes. The keypair is unusable afterwards.
func (k *Keypair) Zero() {
	for i := range k.key {
		k.key[i] = 0
	}
}

// String hides the secret.
func (k *Keypair) String() string {
	return "Keypair(" + k.Address() + ")"
}
