package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"rugwatch/internal/config"
	"rugwatch/internal/custody"
	"rugwatch/internal/solana"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage custodial operator wallets",
}

var walletProvisionCmd = &cobra.Command{
	Use:   "provision <identity>",
	Short: "Create the wallet for an operator identity (Telegram user id)",
	Args:  cobra.ExactArgs(1),
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

		wallets, err := custody.New(ctx, st.custody, st.salts, custody.Options{Passphrase: cfg.Custody.Passphrase})
		if err != nil {
			return err
		}
		w, err := wallets.Provision(ctx, args[0])
		if errors.Is(err, custody.ErrAlreadyProvisioned) {
			return fmt.Errorf("identity %s already has a wallet", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "identity: %s\naddress:  %s\n", args[0], w.Address)
		return nil
	},
}

var walletShowCmd = &cobra.Command{
	Use:   "show <identity>",
	Short: "Print the wallet address and SOL balance for an identity",
	Args:  cobra.ExactArgs(1),
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

		wallets, err := custody.New(ctx, st.custody, st.salts, custody.Options{Passphrase: cfg.Custody.Passphrase})
		if err != nil {
			return err
		}
		w, err := wallets.Get(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "identity: %s\naddress:  %s\n", args[0], w.Address)

		rpc := solana.NewHTTPClient(cfg.Trading.RPCURL, solana.WithTimeout(cfg.Trading.HTTPTimeout))
		lamports, err := rpc.GetBalance(ctx, w.Address)
		if err != nil {
			fmt.Fprintf(out, "balance:  unavailable (%v)\n", err)
			return nil
		}
		fmt.Fprintf(out, "balance:  %.9f SOL\n", solana.LamportsToSOL(lamports))
		return nil
	},
}

var tradesLimit int

var walletTradesCmd = &cobra.Command{
	Use:   "trades <identity>",
	Short: "List recent journaled trades for an identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Journal.ClickHouseDSN == "" {
			return fmt.Errorf("%w: journal.clickhouse_dsn is not set", config.ErrInvalidConfig)
		}
		ctx := cmd.Context()
		st, err := openStores(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.journal.ListByIdentity(ctx, args[0], tradesLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tMINT\tSOL\tRESULT\tSIGNATURE")
		for _, e := range entries {
			result := "ok"
			if !e.Succeeded {
				result = string(e.ErrorClass)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\t%s\n",
				time.UnixMilli(e.CreatedAtMs).UTC().Format(time.RFC3339),
				e.Action, e.Mint, e.AmountSol, result, e.Signature)
		}
		return w.Flush()
	},
}

func init() {
	walletTradesCmd.Flags().IntVar(&tradesLimit, "limit", 20, "maximum entries to list")
	walletCmd.AddCommand(walletProvisionCmd, walletShowCmd, walletTradesCmd)
	rootCmd.AddCommand(walletCmd)
}
