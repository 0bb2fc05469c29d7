package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"rugwatch/internal/domain"
	"rugwatch/internal/storage"
)

// TradeJournal implements storage.TradeJournal using ClickHouse.
type TradeJournal struct {
	conn *Conn
}

// NewTradeJournal creates a new TradeJournal.
func NewTradeJournal(conn *Conn) *TradeJournal {
	return &TradeJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeJournal = (*TradeJournal)(nil)

// Append adds an entry. Returns ErrDuplicateKey if the ID exists.
// MergeTree does not enforce uniqueness, so the ID is checked first.
func (j *TradeJournal) Append(ctx context.Context, e *domain.JournalEntry) error {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := j.exists(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO trade_journal (
			id, identity, action, mint, amount_sol, succeeded,
			error_class, signature, message, created_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		e.ID,
		e.Identity,
		string(e.Action),
		e.Mint,
		e.AmountSol,
		e.Succeeded,
		string(e.ErrorClass),
		e.Signature,
		e.Message,
		e.CreatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// ListByIdentity returns the newest entries for an identity, newest first.
func (j *TradeJournal) ListByIdentity(ctx context.Context, identity string, limit int) ([]*domain.JournalEntry, error) {
	query := `
		SELECT id, identity, action, mint, amount_sol, succeeded,
			error_class, signature, message, created_at_ms
		FROM trade_journal
		WHERE identity = ?
		ORDER BY created_at_ms DESC, id DESC
	`
	args := []any{identity}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by identity: %w", err)
	}
	defer rows.Close()

	return scanJournalEntries(rows)
}

func (j *TradeJournal) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	err := j.conn.QueryRow(ctx, `SELECT count(*) FROM trade_journal WHERE id = ?`, id).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanJournalEntries(rows driver.Rows) ([]*domain.JournalEntry, error) {
	var result []*domain.JournalEntry
	for rows.Next() {
		var (
			e          domain.JournalEntry
			action     string
			errorClass string
		)
		err := rows.Scan(
			&e.ID, &e.Identity, &action, &e.Mint, &e.AmountSol, &e.Succeeded,
			&errorClass, &e.Signature, &e.Message, &e.CreatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Action = domain.Action(action)
		e.ErrorClass = domain.ErrorClass(errorClass)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
