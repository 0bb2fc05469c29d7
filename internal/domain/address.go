package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Base58Alphabet is the Bitcoin base58 alphabet used by Solana addresses.
const Base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// Address length bounds in base58 characters.
const (
	MinAddressLen = 32
	MaxAddressLen = 44
)

// ErrInvalidAddress is returned when a string is not a canonical Solana address.
var ErrInvalidAddress = errors.New("invalid address")

// ValidateAddress checks that s is a 32-44 character base58 string that
// decodes to a 32-byte public key.
func ValidateAddress(s string) error {
	if len(s) < MinAddressLen || len(s) > MaxAddressLen {
		return fmt.Errorf("%w: length %d", ErrInvalidAddress, len(s))
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(Base58Alphabet, s[i]) < 0 {
			return fmt.Errorf("%w: character %q at %d", ErrInvalidAddress, s[i], i)
		}
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%w: decodes to %d bytes", ErrInvalidAddress, len(raw))
	}
	return nil
}

// IsValidAddress reports whether s passes ValidateAddress.
func IsValidAddress(s string) bool {
	return ValidateAddress(s) == nil
}
