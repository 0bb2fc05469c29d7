package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// WatchlistStore implements storage.WatchlistStore using PostgreSQL.
type WatchlistStore struct {
	pool *Pool
}

// NewWatchlistStore creates a new WatchlistStore.
func NewWatchlistStore(pool *Pool) *WatchlistStore {
	return &WatchlistStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WatchlistStore = (*WatchlistStore)(nil)

// List returns every entry ordered by address.
func (s *WatchlistStore) List(ctx context.Context) ([]domain.WatchlistEntry, error) {
	query := `
		SELECT address, label, report_count
		FROM watchlist
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var result []domain.WatchlistEntry
	for rows.Next() {
		e, err := scanWatchlistEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watchlist entry: %w", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}
	return result, nil
}

// Get returns the entry for an address. Returns ErrNotFound if not exists.
func (s *WatchlistStore) Get(ctx context.Context, address string) (*domain.WatchlistEntry, error) {
	query := `
		SELECT address, label, report_count
		FROM watchlist
		WHERE address = $1
	`

	e, err := scanWatchlistEntry(s.pool.QueryRow(ctx, query, address))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get watchlist entry: %w", err)
	}
	return e, nil
}

// Report inserts the address or increments its report count in one statement.
func (s *WatchlistStore) Report(ctx context.Context, address, label string) (*domain.WatchlistEntry, error) {
	if address == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO watchlist (address, label, report_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (address) DO UPDATE SET
			report_count = watchlist.report_count + 1,
			label = COALESCE(NULLIF(EXCLUDED.label, ''), watchlist.label),
			updated_at = now()
		RETURNING address, label, report_count
	`

	e, err := scanWatchlistEntry(s.pool.QueryRow(ctx, query, address, label))
	if err != nil {
		return nil, fmt.Errorf("report watchlist entry: %w", err)
	}
	return e, nil
}

func scanWatchlistEntry(row pgx.Row) (*domain.WatchlistEntry, error) {
	var e domain.WatchlistEntry
	if err := row.Scan(&e.Address, &e.Label, &e.ReportCount); err != nil {
		return nil, err
	}
	return &e, nil
}
