package postgres

import (
	"context"
	"fmt"

	"rugwatch/internal/storage"
)

// SaltStore implements storage.SaltStore using a single-row table.
type SaltStore struct {
	pool *Pool
}

// NewSaltStore creates a new SaltStore.
func NewSaltStore(pool *Pool) *SaltStore {
	return &SaltStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SaltStore = (*SaltStore)(nil)

// LoadSalt returns the stored salt. Returns ErrNotFound if none was saved.
func (s *SaltStore) LoadSalt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := s.pool.QueryRow(ctx, `SELECT salt FROM kdf_salt WHERE id = 1`).Scan(&salt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load salt: %w", err)
	}
	return salt, nil
}

// SaveSalt stores the salt once. Returns ErrDuplicateKey if one exists.
func (s *SaltStore) SaveSalt(ctx context.Context, salt []byte) error {
	if len(salt) == 0 {
		return storage.ErrInvalidInput
	}
	if _, err := s.pool.Exec(ctx, `INSERT INTO kdf_salt (id, salt) VALUES (1, $1)`, salt); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("save salt: %w", err)
	}
	return nil
}
