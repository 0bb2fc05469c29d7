package memory

import (
	"context"
	"sort"
	"sync"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// TradeJournal is an in-memory implementation of storage.TradeJournal.
type TradeJournal struct {
	mu      sync.RWMutex
	entries []*domain.JournalEntry
	ids     map[string]struct{}
}

// NewTradeJournal creates a new in-memory trade journal.
func NewTradeJournal() *TradeJournal {
	return &TradeJournal{ids: make(map[string]struct{})}
}

// Append adds an entry. Returns ErrDuplicateKey if the ID exists.
func (j *TradeJournal) Append(_ context.Context, e *domain.JournalEntry) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, exists := j.ids[e.ID]; exists {
		return storage.ErrDuplicateKey
	}
	entryCopy := *e
	j.entries = append(j.entries, &entryCopy)
	j.ids[e.ID] = struct{}{}
	return nil
}

// ListByIdentity returns the newest entries for an identity, newest first.
func (j *TradeJournal) ListByIdentity(_ context.Context, identity string, limit int) ([]*domain.JournalEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var result []*domain.JournalEntry
	for _, e := range j.entries {
		if e.Identity == identity {
			entryCopy := *e
			result = append(result, &entryCopy)
		}
	}

	sort.SliceStable(result, func(a, b int) bool {
		return result[a].CreatedAtMs > result[b].CreatedAtMs
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.TradeJournal = (*TradeJournal)(nil)
