// Package watchlist holds the in-memory snapshot of flagged creators and
// keeps it in sync with the watchlist store.
package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"rugwatch/internal/domain"
	"rugwatch/internal/observability"
	"rugwatch/internal/storage"
)

// DefaultRefreshInterval is the periodic reload interval.
const DefaultRefreshInterval = time.Minute

// snapshot is immutable once published.
type snapshot struct {
	entries  map[string]domain.WatchlistEntry
	loadedAt time.Time
}

// Matcher tests creation events against the loaded watchlist.
// Readers never block and never see a partially loaded set.
type Matcher struct {
	store   storage.WatchlistStore
	current atomic.Pointer[snapshot]
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// MatcherOptions carries optional collaborators.
type MatcherOptions struct {
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewMatcher creates a matcher with an empty snapshot. Call Refresh to load.
func NewMatcher(store storage.WatchlistStore, opts MatcherOptions) *Matcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &Matcher{
		store:   store,
		metrics: opts.Metrics,
		logger:  logger.With("component", "watchlist"),
		now:     now,
	}
	m.current.Store(&snapshot{entries: map[string]domain.WatchlistEntry{}})
	return m
}

// Refresh reloads the address set from the store and swaps it in whole.
// On error the previous snapshot stays in place.
func (m *Matcher) Refresh(ctx context.Context) error {
	list, err := m.store.List(ctx)
	if err != nil {
		m.metrics.WatchlistLoaded(m.Size(), err)
		return fmt.Errorf("load watchlist: %w", err)
	}

	entries := make(map[string]domain.WatchlistEntry, len(list))
	for _, e := range list {
		entries[e.Address] = e
	}
	m.current.Store(&snapshot{entries: entries, loadedAt: m.now()})
	m.metrics.WatchlistLoaded(len(entries), nil)
	m.logger.Debug("watchlist refreshed", "size", len(entries))
	return nil
}

// Matches reports whether the event's creator is watchlisted.
// Comparison is exact, case-sensitive string equality.
func (m *Matcher) Matches(event domain.CreationEvent) bool {
	_, ok := m.Lookup(event.CreatorAddress)
	return ok
}

// Lookup returns the entry for a creator address.
func (m *Matcher) Lookup(address string) (domain.WatchlistEntry, bool) {
	e, ok := m.current.Load().entries[address]
	return e, ok
}

// Size returns the number of loaded addresses.
func (m *Matcher) Size() int {
	return len(m.current.Load().entries)
}

// LoadedAt returns the time of the last successful refresh.
// Zero before the first one.
func (m *Matcher) LoadedAt() time.Time {
	return m.current.Load().loadedAt
}

// Entries returns the loaded entries sorted by address.
func (m *Matcher) Entries() []domain.WatchlistEntry {
	snap := m.current.Load()
	out := make([]domain.WatchlistEntry, 0, len(snap.entries))
	for _, e := range snap.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// RunRefresh refreshes on every tick of interval and on every value from
// trigger until ctx is done. A nil trigger disables change notifications.
// Refresh errors are logged and retried on the next tick.
func (m *Matcher) RunRefresh(ctx context.Context, interval time.Duration, trigger <-chan struct{}) error {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	refresh := func(reason string) {
		if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("watchlist refresh failed", "reason", reason, "error", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			refresh("interval")
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			refresh("notification")
		}
	}
}
