package memory

import (
	"context"
	"sync"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// WatchlistStore is an in-memory implementation of storage.WatchlistStore.
type WatchlistStore struct {
	mu   sync.RWMutex
	data map[string]domain.WatchlistEntry // keyed by address
}

// NewWatchlistStore creates a new in-memory watchlist store.
func NewWatchlistStore(entries ...domain.WatchlistEntry) *WatchlistStore {
	s := &WatchlistStore{data: make(map[string]domain.WatchlistEntry, len(entries))}
	for _, e := range entries {
		if e.ReportCount < 1 {
			e.ReportCount = 1
		}
		s.data[e.Address] = e
	}
	return s
}

// List returns every entry.
func (s *WatchlistStore) List(_ context.Context) ([]domain.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.WatchlistEntry, 0, len(s.data))
	for _, e := range s.data {
		result = append(result, e)
	}
	return result, nil
}

// Get returns the entry for an address. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Get(_ context.Context, address string) (*domain.WatchlistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &e, nil
}

// Report inserts the address or increments its report count.
func (s *WatchlistStore) Report(_ context.Context, address, label string) (*domain.WatchlistEntry, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[address]
	if exists {
		e.ReportCount++
	} else {
		e = domain.WatchlistEntry{Address: address, ReportCount: 1}
	}
	if label != "" {
		e.Label = label
	}
	s.data[address] = e
	return &e, nil
}

var _ storage.WatchlistStore = (*WatchlistStore)(nil)
