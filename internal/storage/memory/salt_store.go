package memory

import (
	"context"
	"sync"

	"rugwatch/internal/storage"
)

// SaltStore is an in-memory implementation of storage.SaltStore.
type SaltStore struct {
	mu   sync.RWMutex
	salt []byte
}

// NewSaltStore creates a new in-memory salt store.
func NewSaltStore() *SaltStore {
	return &SaltStore{}
}

// LoadSalt returns the stored salt. Returns ErrNotFound if none was saved.
func (s *SaltStore) LoadSalt(_ context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.salt == nil {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), s.salt...), nil
}

// SaveSalt stores the salt once. Returns ErrDuplicateKey if one exists.
func (s *SaltStore) SaveSalt(_ context.Context, salt []byte) error {
	if len(salt) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.salt != nil {
		return storage.ErrDuplicateKey
	}
	s.salt = append([]byte(nil), salt...)
	return nil
}

var _ storage.SaltStore = (*SaltStore)(nil)
