package file

import (
	"context"
	"fmt"
	"sync"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// watchlistRecord is the on-disk shape of one entry:
// {"<address>": {"pumpfun_link": "...", "count": N}}.
type watchlistRecord struct {
	PumpfunLink string `json:"pumpfun_link"`
	Count       int    `json:"count"`
}

// WatchlistStore is a JSON-file implementation of storage.WatchlistStore.
// Reads go to disk every time so external edits are picked up on refresh.
type WatchlistStore struct {
	mu   sync.Mutex
	path string
}

// NewWatchlistStore creates a watchlist store backed by path.
func NewWatchlistStore(path string) *WatchlistStore {
	return &WatchlistStore{path: path}
}

func (s *WatchlistStore) load() (map[string]watchlistRecord, error) {
	data := make(map[string]watchlistRecord)
	if err := readJSON(s.path, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func toEntry(address string, r watchlistRecord) domain.WatchlistEntry {
	count := r.Count
	if count < 1 {
		count = 1
	}
	return domain.WatchlistEntry{Address: address, Label: r.PumpfunLink, ReportCount: count}
}

// List returns every entry.
func (s *WatchlistStore) List(_ context.Context) ([]domain.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	result := make([]domain.WatchlistEntry, 0, len(data))
	for addr, r := range data {
		result = append(result, toEntry(addr, r))
	}
	return result, nil
}

// Get returns the entry for an address. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Get(_ context.Context, address string) (*domain.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.load()
	if err != nil {
		return nil, err
	}
	r, ok := data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	e := toEntry(address, r)
	return &e, nil
}

// Report inserts the address or increments its report count.
func (s *WatchlistStore) Report(_ context.Context, address, label string) (*domain.WatchlistEntry, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var r watchlistRecord
	err := withLock(s.path, true, func() error {
		data, err := s.load()
		if err != nil {
			return err
		}
		var ok bool
		r, ok = data[address]
		if ok {
			if r.Count < 1 {
				r.Count = 1
			}
			r.Count++
		} else {
			r = watchlistRecord{Count: 1}
		}
		if label != "" {
			r.PumpfunLink = label
		}
		data[address] = r

		if err := writeJSON(s.path, data, 0o644); err != nil {
			return fmt.Errorf("save watchlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e := toEntry(address, r)
	return &e, nil
}

var _ storage.WatchlistStore = (*WatchlistStore)(nil)
