package file

import (
	"context"
	"fmt"
	"sync"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// CustodyStore is a JSON-file implementation of storage.CustodyStore.
// The file maps identity to ciphertext and is written with mode 0600.
type CustodyStore struct {
	mu   sync.Mutex
	path string
}

// NewCustodyStore creates a custody store backed by path.
func NewCustodyStore(path string) *CustodyStore {
	return &CustodyStore{path: path}
}

func (s *CustodyStore) load() (map[string]string, error) {
	data := make(map[string]string)
	if err := readJSON(s.path, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// Insert adds a record. Returns ErrDuplicateKey if the identity exists.
func (s *CustodyStore) Insert(_ context.Context, rec domain.CustodyRecord) error {
	if rec.Identity == "" || rec.Ciphertext == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return withLock(s.path, true, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		if _, exists := data[rec.Identity]; exists {
			return storage.ErrDuplicateKey
		}
		data[rec.Identity] = rec.Ciphertext
		if err := writeJSON(s.path, data, 0o600); err != nil {
			return fmt.Errorf("save custody: %w", err)
		}
		return nil
	})
}

// Get retrieves a record by identity. Returns ErrNotFound if not exists.
func (s *CustodyStore) Get(_ context.Context, identity string) (*domain.CustodyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data map[string]string
	err := withLock(s.path, false, func() error {
		var err error
		data, err = s.load()
		return err
	})
	if err != nil {
		return nil, err
	}
	ct, ok := data[identity]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.CustodyRecord{Identity: identity, Ciphertext: ct}, nil
}

var _ storage.CustodyStore = (*CustodyStore)(nil)
