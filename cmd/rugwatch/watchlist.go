package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rugwatch/internal/domain"
	"rugwatch/internal/watchlist"
)

var watchlistCmd = &cobra.Command{
	Use:   "watchlist",
	Short: "Inspect and edit the flagged creator list",
}

var watchlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List flagged creators",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStores(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer st.Close()

		matcher := watchlist.NewMatcher(st.watchlist, watchlist.MatcherOptions{})
		if err := matcher.Refresh(ctx); err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tREPORTS\tLABEL")
		for _, e := range matcher.Entries() {
			fmt.Fprintf(w, "%s\t%d\t%s\n", e.Address, e.ReportCount, e.Label)
		}
		return w.Flush()
	},
}

var reportLabel string

var watchlistAddCmd = &cobra.Command{
	Use:   "add <address>",
	Short: "Flag a creator, or bump its report count if already listed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		address := args[0]
		if err := domain.ValidateAddress(address); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		st, err := openStores(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer st.Close()

		entry, err := st.watchlist.Report(ctx, address, reportLabel)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s reports=%d label=%q\n", entry.Address, entry.ReportCount, entry.Label)

		if cfg.Watchlist.Redis.URL == "" {
			return nil
		}
		notifier, err := watchlist.NewRedisNotifier(ctx, cfg.Watchlist.Redis, slog.Default())
		if err != nil {
			slog.Warn("Watchlist saved but running daemons were not notified", "error", err)
			return nil
		}
		defer notifier.Close()
		if err := notifier.Publish(ctx, address); err != nil {
			slog.Warn("Watchlist saved but running daemons were not notified", "error", err)
		}
		return nil
	},
}

func init() {
	watchlistAddCmd.Flags().StringVar(&reportLabel, "label", "", "profile link or free-form label")
	watchlistCmd.AddCommand(watchlistListCmd, watchlistAddCmd)
	rootCmd.AddCommand(watchlistCmd)
}
