package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"rugwatch/internal/custody"
	"rugwatch/internal/domain"
	"rugwatch/internal/observability"
	"rugwatch/internal/trading"
)

// Reply texts.
const (
	MsgInvalidCallback = "That button is no longer valid."
	MsgWalletLookup    = trading.MsgWalletLookup
	MsgWalletCreated   = "Wallet created. Deposit SOL to this address to enable sweeps:"
	MsgWalletExists    = "Wallet already exists:"
	MsgWalletFailed    = "Could not create a wallet. Try again later."
	MsgYourWallet      = "Your wallet:"
	MsgUnknownCommand  = "Unknown command. Available: /start /wallet /balance"
)

// Trader executes trades.
type Trader interface {
	Buy(ctx context.Context, req domain.TradeRequest) domain.TradeResult
	Sell(ctx context.Context, req domain.TradeRequest) domain.TradeResult
}

// Wallets is the custody surface the dispatcher uses.
type Wallets interface {
	Provision(ctx context.Context, identity string) (*domain.Wallet, error)
	Get(ctx context.Context, identity string) (*domain.Wallet, error)
	Has(ctx context.Context, identity string) (bool, error)
}

// Balances reports wallet balances in lamports.
type Balances interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
}

// WatchlistSizer reports the number of watched addresses.
type WatchlistSizer interface {
	Size() int
}

// DispatcherConfig holds delivery settings.
type DispatcherConfig struct {
	AlertChatID  int64
	SweepAmounts []float64
}

// DispatcherOptions carries optional collaborators.
type DispatcherOptions struct {
	Balances  Balances
	Watchlist WatchlistSizer
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

// Dispatcher sends alerts and handles the resulting actions.
// Delivery failures are logged and never propagate as panics.
type Dispatcher struct {
	channel   Channel
	trader    Trader
	wallets   Wallets
	balances  Balances
	watchlist WatchlistSizer
	cfg       DispatcherConfig
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(channel Channel, trader Trader, wallets Wallets, cfg DispatcherConfig, opts DispatcherOptions) *Dispatcher {
	if len(cfg.SweepAmounts) == 0 {
		cfg.SweepAmounts = DefaultSweepAmounts
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		channel:   channel,
		trader:    trader,
		wallets:   wallets,
		balances:  opts.Balances,
		watchlist: opts.Watchlist,
		cfg:       cfg,
		metrics:   opts.Metrics,
		logger:    logger.With("component", "dispatcher"),
	}
}

// Alert sends one alert with sweep controls to the operator channel.
func (d *Dispatcher) Alert(ctx context.Context, event domain.CreationEvent, entry domain.WatchlistEntry) error {
	msg := Message{ChatID: d.cfg.AlertChatID, Text: FormatAlert(event, entry)}

	buttons, err := SweepButtons(event.MintAddress, d.cfg.SweepAmounts)
	if err != nil {
		d.logger.Warn("alert sent without controls", "mint", event.MintAddress, "error", err)
	} else {
		msg.Buttons = buttons
	}

	err = d.channel.Send(ctx, msg)
	d.metrics.AlertSent(err)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

// OnAction handles a pressed control. The callback is acknowledged before
// anything else and the outcome goes privately to the invoker.
func (d *Dispatcher) OnAction(ctx context.Context, cb CallbackQuery) {
	if err := d.channel.AnswerCallback(ctx, cb.ID, ""); err != nil {
		d.logger.Warn("callback ack failed", "callback_id", cb.ID, "error", err)
	}

	action, err := ParseCallback(cb.Data)
	if err != nil {
		d.metrics.CallbackReceived("invalid")
		d.logger.Warn("rejected callback", "from", cb.From, "error", err)
		text := MsgInvalidCallback
		if errors.Is(err, domain.ErrInvalidAddress) {
			text = trading.MsgInvalidAddress
		}
		d.reply(ctx, cb.From, text, nil)
		return
	}
	d.metrics.CallbackReceived(string(action.Kind))

	identity := identityOf(cb.From)
	ok, err := d.wallets.Has(ctx, identity)
	if err != nil {
		d.logger.Error("wallet lookup failed", "identity", identity, "error", err)
		d.reply(ctx, cb.From, MsgWalletLookup, nil)
		return
	}
	if !ok {
		d.reply(ctx, cb.From, trading.MsgNoWallet, nil)
		return
	}

	req := domain.TradeRequest{ActorIdentity: identity, Mint: action.Mint}
	var res domain.TradeResult
	switch action.Kind {
	case KindSell:
		req.Action = domain.ActionSell
		res = d.trader.Sell(ctx, req)
	default:
		req.Action = domain.ActionBuy
		req.AmountSol = action.AmountSol
		res = d.trader.Buy(ctx, req)
	}

	var buttons [][]Button
	if res.Succeeded && req.Action == domain.ActionBuy {
		if buttons, err = SellButtons(req.Mint); err != nil {
			d.logger.Warn("sell control unavailable", "mint", req.Mint, "error", err)
		}
	}
	d.reply(ctx, cb.From, FormatTradeResult(req.Action, res), buttons)
}

// OnCommand handles /start, /wallet and /balance.
func (d *Dispatcher) OnCommand(ctx context.Context, cmd Command) {
	switch strings.ToLower(cmd.Name) {
	case "start":
		d.reply(ctx, cmd.ChatID, d.startText(), nil)
	case "wallet":
		d.provisionWallet(ctx, cmd.From)
	case "balance":
		d.showWallet(ctx, cmd.From)
	default:
		d.reply(ctx, cmd.ChatID, MsgUnknownCommand, nil)
	}
}

// Handle routes one inbound update.
func (d *Dispatcher) Handle(ctx context.Context, u Update) {
	switch {
	case u.Callback != nil:
		d.OnAction(ctx, *u.Callback)
	case u.Command != nil:
		d.OnCommand(ctx, *u.Command)
	}
}

func (d *Dispatcher) startText() string {
	size := 0
	if d.watchlist != nil {
		size = d.watchlist.Size()
	}
	return fmt.Sprintf("Watching %d flagged creator addresses.\n/wallet creates your trading wallet.\n/balance shows it.", size)
}

func (d *Dispatcher) provisionWallet(ctx context.Context, user int64) {
	identity := identityOf(user)
	w, err := d.wallets.Provision(ctx, identity)
	switch {
	case err == nil:
		d.metrics.WalletProvisioned()
		d.reply(ctx, user, d.walletText(ctx, MsgWalletCreated, w.Address), nil)
	case errors.Is(err, custody.ErrAlreadyProvisioned):
		existing, getErr := d.wallets.Get(ctx, identity)
		if getErr != nil {
			d.logger.Error("existing wallet unreadable", "identity", identity, "error", getErr)
			d.reply(ctx, user, MsgWalletLookup, nil)
			return
		}
		d.reply(ctx, user, d.walletText(ctx, MsgWalletExists, existing.Address), nil)
	default:
		d.logger.Error("wallet provisioning failed", "identity", identity, "error", err)
		d.reply(ctx, user, MsgWalletFailed, nil)
	}
}

func (d *Dispatcher) showWallet(ctx context.Context, user int64) {
	identity := identityOf(user)
	w, err := d.wallets.Get(ctx, identity)
	if err != nil {
		if !trading.IsNoWallet(err) {
			d.logger.Error("wallet lookup failed", "identity", identity, "error", err)
			d.reply(ctx, user, MsgWalletLookup, nil)
			return
		}
		d.reply(ctx, user, trading.MsgNoWallet, nil)
		return
	}
	d.reply(ctx, user, d.walletText(ctx, MsgYourWallet, w.Address), nil)
}

func (d *Dispatcher) walletText(ctx context.Context, heading, address string) string {
	if d.balances == nil {
		return FormatWallet(heading, address, 0, errors.New("no rpc"))
	}
	lamports, err := d.balances.GetBalance(ctx, address)
	if err != nil {
		d.logger.Warn("balance unavailable", "address", address, "error", err)
	}
	return FormatWallet(heading, address, lamports, err)
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string, buttons [][]Button) {
	if err := d.channel.Send(ctx, Message{ChatID: chatID, Text: text, Buttons: buttons}); err != nil {
		d.logger.Error("reply failed", "chat_id", chatID, "error", err)
	}
}

// identityOf maps a messaging user id to a custody identity.
func identityOf(user int64) string {
	return strconv.FormatInt(user, 10)
}
