// Command rugwatch watches pump.fun launches for flagged creators, alerts a
// Telegram chat, and trades from per-operator custodial wallets.
//
// Usage:
//
//	rugwatch run                      # start the daemon
//	rugwatch watchlist add <address>  # flag a creator
//	rugwatch watchlist list
//	rugwatch wallet provision <identity>
//	rugwatch wallet show <identity>
//	rugwatch wallet trades <identity>
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
