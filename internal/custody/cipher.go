package custody

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// ciphertextPrefix versions the stored format.
const ciphertextPrefix = "v1:"

// ErrDecryption is returned when a ciphertext cannot be opened with the current key.
var ErrDecryption = errors.New("decryption failed")

// Cipher seals key material with XChaCha20-Poly1305.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a KeySize-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext bound to ad and returns "v1:" + base64url(nonce||sealed).
func (c *Cipher) Seal(plaintext, ad []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, ad)
	return ciphertextPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any format or authentication failure wraps ErrDecryption.
func (c *Cipher) Open(ciphertext string, ad []byte) ([]byte, error) {
	body, ok := strings.CutPrefix(ciphertext, ciphertextPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: unknown ciphertext format", ErrDecryption)
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	plaintext, err := c.aead.Open(nil, raw[:ns], raw[ns:], ad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}
