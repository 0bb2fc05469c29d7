package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"rugwatch/internal/config"
	"rugwatch/internal/custody"
	"rugwatch/internal/ingestion"
	"rugwatch/internal/notify"
	"rugwatch/internal/observability"
	"rugwatch/internal/solana"
	"rugwatch/internal/trading"
	"rugwatch/internal/watchlist"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch launches, send alerts and serve trade buttons",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateDaemon(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runDaemon(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runDaemon wires every component and blocks until ctx is done or one of
// the long-running loops fails.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	started := time.Now()
	logger := slog.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(observability.DefaultNamespace, reg)

	st, err := openStores(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	wallets, err := custody.New(ctx, st.custody, st.salts, custody.Options{
		Passphrase: cfg.Custody.Passphrase,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("open custody: %w", err)
	}

	rpc := solana.NewHTTPClient(cfg.Trading.RPCURL, solana.WithTimeout(cfg.Trading.HTTPTimeout))
	portal := trading.NewPortalClient(cfg.Trading.APIURL, trading.WithPortalTimeout(cfg.Trading.HTTPTimeout))
	engine := trading.NewEngine(wallets, portal, rpc, trading.Config{
		BuySlippageBps:  cfg.Trading.BuySlippageBps,
		SellSlippageBps: cfg.Trading.SellSlippageBps,
		PriorityFeeSol:  cfg.Trading.PriorityFeeSol,
		Pool:            cfg.Trading.Pool,
		ExplorerURL:     cfg.Trading.ExplorerURL,
		CallTimeout:     cfg.Trading.HTTPTimeout,
	}, trading.EngineOptions{
		Journal: st.journal,
		Metrics: metrics,
		Logger:  logger,
	})

	matcher := watchlist.NewMatcher(st.watchlist, watchlist.MatcherOptions{Metrics: metrics, Logger: logger})
	if err := matcher.Refresh(ctx); err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	var trigger <-chan struct{}
	if cfg.Watchlist.Redis.URL != "" {
		notifier, err := watchlist.NewRedisNotifier(ctx, cfg.Watchlist.Redis, logger)
		if err != nil {
			return err
		}
		defer notifier.Close()
		if trigger, err = notifier.Subscribe(ctx); err != nil {
			return err
		}
	}

	channel, err := notify.NewTelegramChannel(cfg.Telegram.Token, notify.TelegramOptions{Logger: logger})
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(channel, engine, wallets, notify.DispatcherConfig{
		AlertChatID:  cfg.Telegram.AlertChatID,
		SweepAmounts: cfg.Trading.SweepAmounts,
	}, notify.DispatcherOptions{
		Balances:  rpc,
		Watchlist: matcher,
		Metrics:   metrics,
		Logger:    logger,
	})

	stream := ingestion.NewStream(cfg.Stream, ingestion.StreamOptions{Logger: logger, Metrics: metrics})
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:  stream,
		Matcher: matcher,
		Alerter: dispatcher,
		Metrics: metrics,
		Logger:  logger,
	})
	poller := notify.NewPoller(dispatcher, cfg.Telegram.Workers, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return poller.Run(gctx, channel.Updates(gctx, cfg.Telegram.PollTimeout)) })
	g.Go(func() error { return matcher.RunRefresh(gctx, cfg.Watchlist.RefreshInterval, trigger) })
	if cfg.Metrics.Addr != "" {
		mux := observability.NewMux(metrics, reg, started)
		g.Go(func() error { return observability.Serve(gctx, cfg.Metrics.Addr, mux, logger) })
		g.Go(func() error {
			metrics.RunUptime(gctx)
			return nil
		})
	}

	slog.Info("rugwatch started",
		"bot", channel.Username(),
		"watchlist", matcher.Size(),
		"storage", cfg.Storage.Driver,
		"stream", cfg.Stream.URL,
	)

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		slog.Info("rugwatch stopped")
		return nil
	}
	return err
}
