package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"rugwatch/internal/storage"
)

// SaltStore keeps the key-derivation salt as raw bytes in a single file.
type SaltStore struct {
	mu   sync.Mutex
	path string
}

// NewSaltStore creates a salt store backed by path.
func NewSaltStore(path string) *SaltStore {
	return &SaltStore{path: path}
}

// LoadSalt returns the stored salt. Returns ErrNotFound if none was saved.
func (s *SaltStore) LoadSalt(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var salt []byte
	err := withLock(s.path, false, func() error {
		var err error
		salt, err = s.read()
		return err
	})
	return salt, err
}

func (s *SaltStore) read() ([]byte, error) {
	salt, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read salt: %w", err)
	}
	if len(salt) == 0 {
		return nil, storage.ErrNotFound
	}
	return salt, nil
}

// SaveSalt stores the salt once. Returns ErrDuplicateKey if one exists.
func (s *SaltStore) SaveSalt(_ context.Context, salt []byte) error {
	if len(salt) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return withLock(s.path, true, func() error {
		if _, err := s.read(); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return writeAtomic(s.path, salt, 0o600)
	})
}

var _ storage.SaltStore = (*SaltStore)(nil)
