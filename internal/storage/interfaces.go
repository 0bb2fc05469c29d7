package storage

import (
	"context"

	"rugwatch/internal/domain"
)

// WatchlistStore is the keyed store of flagged creator addresses.
type WatchlistStore interface {
	// List returns every entry. Order is unspecified.
	List(ctx context.Context) ([]domain.WatchlistEntry, error)

	// Get returns the entry for an address. Returns ErrNotFound if not exists.
	Get(ctx context.Context, address string) (*domain.WatchlistEntry, error)

	// Report inserts the address with ReportCount 1, or increments the count of
	// an existing entry. A non-empty label replaces the stored one.
	Report(ctx context.Context, address, label string) (*domain.WatchlistEntry, error)
}

// CustodyStore persists identity -> ciphertext records.
type CustodyStore interface {
	// Insert adds a record. Returns ErrDuplicateKey if the identity exists.
	Insert(ctx context.Context, rec domain.CustodyRecord) error

	// Get retrieves a record by identity. Returns ErrNotFound if not exists.
	Get(ctx context.Context, identity string) (*domain.CustodyRecord, error)
}

// SaltStore persists the single key-derivation salt.
type SaltStore interface {
	// LoadSalt returns the stored salt. Returns ErrNotFound if none was saved.
	LoadSalt(ctx context.Context) ([]byte, error)

	// SaveSalt stores the salt once. Returns ErrDuplicateKey if one exists.
	SaveSalt(ctx context.Context, salt []byte) error
}

// TradeJournal is an append-only log of trade attempts.
type TradeJournal interface {
	// Append adds an entry. Returns ErrDuplicateKey if the ID exists.
	Append(ctx context.Context, e *domain.JournalEntry) error

	// ListByIdentity returns the newest entries for an identity, newest first.
	ListByIdentity(ctx context.Context, identity string, limit int) ([]*domain.JournalEntry, error)
}
