package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"rugwatch/internal/domain"
	"rugwatch/internal/solana"
)

// DefaultSweepAmounts are the preset buy controls attached to each alert.
var DefaultSweepAmounts = []float64{0.1, 0.25, 0.5, 1}

// Public pages.
const (
	CoinPageURL    = "https://pump.fun/coin/"
	ProfilePageURL = "https://pump.fun/profile/"
)

// FormatAlert renders the alert for a watchlisted creator's new token.
func FormatAlert(event domain.CreationEvent, entry domain.WatchlistEntry) string {
	var b strings.Builder
	b.WriteString("🚨 <b>Flagged creator launched a token</b>\n\n")
	fmt.Fprintf(&b, "<b>%s</b> (%s)\n", html.EscapeString(event.TokenName), html.EscapeString(event.Symbol))
	fmt.Fprintf(&b, "Mint: <code>%s</code>\n", html.EscapeString(event.MintAddress))
	fmt.Fprintf(&b, "Creator: <code>%s</code>\n", html.EscapeString(event.CreatorAddress))
	fmt.Fprintf(&b, "Reports: %d\n", entry.ReportCount)
	if entry.Label != "" {
		fmt.Fprintf(&b, "Label: %s\n", html.EscapeString(entry.Label))
	}
	fmt.Fprintf(&b, "Market cap: %s SOL\n", formatSol(event.MarketCapSol))
	if event.SolAmount > 0 || event.InitialBuy > 0 {
		fmt.Fprintf(&b, "Dev buy: %s SOL (%s tokens)\n", formatSol(event.SolAmount), formatTokens(event.InitialBuy))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "<a href=\"%s\">pump.fun</a> | <a href=\"%s\">creator</a>",
		html.EscapeString(CoinPageURL+event.MintAddress),
		html.EscapeString(ProfilePageURL+event.CreatorAddress))
	return b.String()
}

// SweepButtons returns one row of buy controls for mint.
func SweepButtons(mint string, amounts []float64) ([][]Button, error) {
	row := make([]Button, 0, len(amounts))
	for _, a := range amounts {
		data, err := Callback{Kind: KindSweep, Mint: mint, AmountSol: a}.Encode()
		if err != nil {
			return nil, err
		}
		row = append(row, Button{Text: formatSol(a) + " SOL", Data: data})
	}
	return [][]Button{row}, nil
}

// SellButtons returns the sell-all control shown after a buy.
func SellButtons(mint string) ([][]Button, error) {
	data, err := Callback{Kind: KindSell, Mint: mint}.Encode()
	if err != nil {
		return nil, err
	}
	return [][]Button{{{Text: "Sell 100%", Data: data}}}, nil
}

// FormatTradeResult renders a private trade reply.
func FormatTradeResult(action domain.Action, res domain.TradeResult) string {
	verb := "Buy"
	if action == domain.ActionSell {
		verb = "Sell"
	}
	if res.Succeeded {
		return fmt.Sprintf("✅ %s submitted\n<a href=\"%s\">View transaction</a>", verb, html.EscapeString(res.Message))
	}
	text := fmt.Sprintf("❌ %s failed: %s", verb, html.EscapeString(res.Message))
	if res.Detail != "" {
		text += "\n<code>" + html.EscapeString(truncate(res.Detail, 300)) + "</code>"
	}
	return text
}

// FormatWallet renders a wallet address with its balance.
func FormatWallet(heading, address string, lamports uint64, balanceErr error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n<code>%s</code>\n", html.EscapeString(heading), html.EscapeString(address))
	if balanceErr != nil {
		b.WriteString("Balance: unavailable")
	} else {
		fmt.Fprintf(&b, "Balance: %s SOL", formatSol(solana.LamportsToSOL(lamports)))
	}
	return b.String()
}

func formatSol(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTokens(v float64) string {
	switch {
	case v >= 1e9:
		return strconv.FormatFloat(v/1e9, 'f', 2, 64) + "B"
	case v >= 1e6:
		return strconv.FormatFloat(v/1e6, 'f', 2, 64) + "M"
	case v >= 1e3:
		return strconv.FormatFloat(v/1e3, 'f', 2, 64) + "K"
	default:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
