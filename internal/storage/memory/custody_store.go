package memory

import (
	"context"
	"sync"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// CustodyStore is an in-memory implementation of storage.CustodyStore.
type CustodyStore struct {
	mu   sync.RWMutex
	data map[string]string // identity -> ciphertext
}

// NewCustodyStore creates a new in-memory custody store.
func NewCustodyStore() *CustodyStore {
	return &CustodyStore{data: make(map[string]string)}
}

// Insert adds a record. Returns ErrDuplicateKey if the identity exists.
func (s *CustodyStore) Insert(_ context.Context, rec domain.CustodyRecord) error {
	if rec.Identity == "" || rec.Ciphertext == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[rec.Identity]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[rec.Identity] = rec.Ciphertext
	return nil
}

// Get retrieves a record by identity. Returns ErrNotFound if not exists.
func (s *CustodyStore) Get(_ context.Context, identity string) (*domain.CustodyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ct, exists := s.data[identity]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &domain.CustodyRecord{Identity: identity, Ciphertext: ct}, nil
}

var _ storage.CustodyStore = (*CustodyStore)(nil)
