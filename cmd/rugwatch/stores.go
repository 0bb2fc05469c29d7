package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"rugwatch/internal/config"
	"rugwatch/internal/storage"
	chstore "rugwatch/internal/storage/clickhouse"
	"rugwatch/internal/storage/file"
	"rugwatch/internal/storage/memory"
	"rugwatch/internal/storage/migrations"
	pgstore "rugwatch/internal/storage/postgres"
)

// stores holds the durable backends selected by storage.driver.
type stores struct {
	watchlist storage.WatchlistStore
	custody   storage.CustodyStore
	salts     storage.SaltStore
	journal   storage.TradeJournal
	closers   []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds the watchlist and custody stores. The trade journal is
// opened only when withJournal is set.
func openStores(ctx context.Context, cfg *config.Config, withJournal bool) (*stores, error) {
	s := &stores{}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			s.Close()
			return nil, err
		}
		if len(applied) > 0 {
			slog.Info("Applied postgres migrations", "versions", applied)
		}
		s.watchlist = pgstore.NewWatchlistStore(pool)
		s.custody = pgstore.NewCustodyStore(pool)
		s.salts = pgstore.NewSaltStore(pool)
	case config.DriverMemory:
		slog.Warn("Memory storage selected, wallets are lost on exit")
		s.watchlist = memory.NewWatchlistStore()
		s.custody = memory.NewCustodyStore()
		s.salts = memory.NewSaltStore()
	default:
		if err := os.MkdirAll(cfg.Storage.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		s.watchlist = file.NewWatchlistStore(cfg.DataPath(config.WatchlistFile))
		s.custody = file.NewCustodyStore(cfg.DataPath(config.CustodyFile))
		s.salts = file.NewSaltStore(cfg.DataPath(config.SaltFile))
	}

	if !withJournal {
		return s, nil
	}
	if cfg.Journal.ClickHouseDSN == "" {
		s.journal = memory.NewTradeJournal()
		return s, nil
	}
	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Journal.ClickHouseDSN)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = conn.Close() })
	s.journal = chstore.NewTradeJournal(conn)
	return s, nil
}
