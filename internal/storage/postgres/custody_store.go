package postgres

import (
	"context"
	"fmt"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// CustodyStore implements storage.CustodyStore using PostgreSQL.
type CustodyStore struct {
	pool *Pool
}

// NewCustodyStore creates a new CustodyStore.
func NewCustodyStore(pool *Pool) *CustodyStore {
	return &CustodyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CustodyStore = (*CustodyStore)(nil)

// Insert adds a record. Returns ErrDuplicateKey if the identity exists.
func (s *CustodyStore) Insert(ctx context.Context, rec domain.CustodyRecord) error {
	if rec.Identity == "" || rec.Ciphertext == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO custody_records (identity, ciphertext)
		VALUES ($1, $2)
	`

	if _, err := s.pool.Exec(ctx, query, rec.Identity, rec.Ciphertext); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert custody record: %w", err)
	}
	return nil
}

// Get retrieves a record by identity. Returns ErrNotFound if not exists.
func (s *CustodyStore) Get(ctx context.Context, identity string) (*domain.CustodyRecord, error) {
	query := `
		SELECT identity, ciphertext
		FROM custody_records
		WHERE identity = $1
	`

	var rec domain.CustodyRecord
	err := s.pool.QueryRow(ctx, query, identity).Scan(&rec.Identity, &rec.Ciphertext)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get custody record: %w", err)
	}
	return &rec, nil
}
