package storage

import (
	"context"
	"errors"
	"fmt"
)

// LoadOrCreateSalt returns the persisted salt, generating and saving one on first use.
// A concurrent first save by another process is resolved by re-reading.
func LoadOrCreateSalt(ctx context.Context, s SaltStore, generate func() ([]byte, error)) ([]byte, error) {
	salt, err := s.LoadSalt(ctx)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load salt: %w", err)
	}

	salt, err = generate()
	if err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if err := s.SaveSalt(ctx, salt); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return s.LoadSalt(ctx)
		}
		return nil, fmt.Errorf("save salt: %w", err)
	}
	return salt, nil
}
