// Package trading builds, signs and submits trades against the
// trade-construction service and the Solana RPC endpoint.
package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"rugwatch/internal/custody"
	"rugwatch/internal/domain"
	"rugwatch/internal/observability"
	"rugwatch/internal/signer"
	"rugwatch/internal/solana"
	"rugwatch/internal/storage"
)

// Default trade parameters.
const (
	DefaultBuySlippageBps  = 1000
	DefaultSellSlippageBps = 2000
	DefaultPriorityFeeSol  = 0.001
	DefaultPool            = "auto"
	DefaultExplorerURL     = "https://solscan.io/tx/"
	DefaultCallTimeout     = 15 * time.Second

	// FaultAccountNotFound is the chain error for a never-funded account.
	FaultAccountNotFound = "AccountNotFound"
)

// User-facing messages.
const (
	MsgNoWallet        = "No wallet found. Send /wallet to create one."
	MsgWalletLookup    = "Could not look up your wallet. Try again later."
	MsgInvalidAddress  = "Invalid token address."
	MsgNetwork         = "Trade service is unavailable. Try again later."
	MsgEmptyResponse   = "Trade service returned an empty response."
	MsgMalformed       = "Could not sign the transaction returned by the trade service."
	MsgAccountNotFound = "AccountNotFound: one of the required accounts does not exist or has never been funded."
	MsgChainSubmission = "Transaction was rejected by the network."
)

// KeySource resolves an identity to its signing keypair.
type KeySource interface {
	Keypair(ctx context.Context, identity string) (*signer.Keypair, error)
}

// Submitter submits signed transactions.
type Submitter interface {
	SendTransaction(ctx context.Context, tx []byte) (string, error)
}

// Config holds trade defaults.
type Config struct {
	BuySlippageBps  int
	SellSlippageBps int
	PriorityFeeSol  float64
	Pool            string
	ExplorerURL     string
	CallTimeout     time.Duration
}

// DefaultConfig returns the default trade parameters.
func DefaultConfig() Config {
	return Config{
		BuySlippageBps:  DefaultBuySlippageBps,
		SellSlippageBps: DefaultSellSlippageBps,
		PriorityFeeSol:  DefaultPriorityFeeSol,
		Pool:            DefaultPool,
		ExplorerURL:     DefaultExplorerURL,
		CallTimeout:     DefaultCallTimeout,
	}
}

// Engine executes trades. Every call is synchronous and never retried.
type Engine struct {
	keys    KeySource
	builder TemplateBuilder
	chain   Submitter
	journal storage.TradeJournal
	metrics *observability.Metrics
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// EngineOptions carries optional collaborators.
type EngineOptions struct {
	Journal storage.TradeJournal
	Metrics *observability.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewEngine creates a trade engine. Zero config fields take defaults.
func NewEngine(keys KeySource, builder TemplateBuilder, chain Submitter, cfg Config, opts EngineOptions) *Engine {
	def := DefaultConfig()
	if cfg.BuySlippageBps <= 0 {
		cfg.BuySlippageBps = def.BuySlippageBps
	}
	if cfg.SellSlippageBps <= 0 {
		cfg.SellSlippageBps = def.SellSlippageBps
	}
	if cfg.PriorityFeeSol <= 0 {
		cfg.PriorityFeeSol = def.PriorityFeeSol
	}
	if cfg.Pool == "" {
		cfg.Pool = def.Pool
	}
	if cfg.ExplorerURL == "" {
		cfg.ExplorerURL = def.ExplorerURL
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		keys:    keys,
		builder: builder,
		chain:   chain,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  logger.With("component", "trading"),
		cfg:     cfg,
		now:     now,
	}
}

// Buy spends req.AmountSol on req.Mint.
func (e *Engine) Buy(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	req.Action = domain.ActionBuy
	return e.execute(ctx, req)
}

// Sell sells the whole token balance of req.Mint.
func (e *Engine) Sell(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	req.Action = domain.ActionSell
	return e.execute(ctx, req)
}

func (e *Engine) execute(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	start := e.now()
	res := e.run(ctx, req)

	e.metrics.TradeFinished(string(req.Action), string(res.ErrorClass), e.now().Sub(start))
	e.record(ctx, req, res)

	if res.Succeeded {
		e.logger.Info("trade submitted",
			"identity", req.ActorIdentity, "action", req.Action, "mint", req.Mint, "signature", res.Signature)
	} else {
		e.logger.Warn("trade failed",
			"identity", req.ActorIdentity, "action", req.Action, "mint", req.Mint,
			"class", res.ErrorClass, "detail", res.Detail)
	}
	return res
}

func (e *Engine) run(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	if err := domain.ValidateAddress(req.Mint); err != nil {
		return failure(domain.ErrorClassInvalidAddress, MsgInvalidAddress, err)
	}

	kp, err := e.keys.Keypair(ctx, req.ActorIdentity)
	if err != nil {
		if IsNoWallet(err) {
			return failure(domain.ErrorClassKeyNotFound, MsgNoWallet, err)
		}
		return failure(domain.ErrorClassKeyNotFound, MsgWalletLookup, err)
	}
	defer kp.Zero()

	form, err := e.form(req, kp.Address())
	if err != nil {
		return failure(domain.ErrorClassInvalidAddress, err.Error(), err)
	}

	template, err := e.build(ctx, form)
	if err != nil {
		var statusErr *HTTPStatusError
		switch {
		case errors.Is(err, ErrEmptyResponse):
			return failure(domain.ErrorClassEmptyResponse, MsgEmptyResponse, err)
		case errors.As(err, &statusErr):
			return failure(domain.ErrorClassNetwork, fmt.Sprintf("%s (HTTP %d)", MsgNetwork, statusErr.StatusCode), err)
		default:
			return failure(domain.ErrorClassNetwork, MsgNetwork, err)
		}
	}

	signed, _, err := signer.SignTransaction(template, kp)
	if err != nil {
		return failure(domain.ErrorClassMalformedTransaction, MsgMalformed, err)
	}

	signature, err := e.submit(ctx, signed)
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Fault() == FaultAccountNotFound {
			return failure(domain.ErrorClassAccountNotFound, MsgAccountNotFound, err)
		}
		return failure(domain.ErrorClassChainSubmission, MsgChainSubmission+" "+err.Error(), err)
	}
	if signature == "" {
		return failure(domain.ErrorClassChainSubmission, MsgChainSubmission, errors.New("no signature in response"))
	}

	return domain.TradeResult{
		Succeeded:  true,
		Message:    e.cfg.ExplorerURL + signature,
		ErrorClass: domain.ErrorClassNone,
		Signature:  signature,
	}
}

func (e *Engine) form(req domain.TradeRequest, publicKey string) (TradeForm, error) {
	form := TradeForm{
		PublicKey:      publicKey,
		Action:         string(req.Action),
		Mint:           req.Mint,
		PriorityFeeSol: req.PriorityFeeSol,
		Pool:           req.Pool,
	}
	if form.PriorityFeeSol <= 0 {
		form.PriorityFeeSol = e.cfg.PriorityFeeSol
	}
	if form.Pool == "" {
		form.Pool = e.cfg.Pool
	}

	slippage := req.SlippageBps
	switch req.Action {
	case domain.ActionBuy:
		if req.AmountSol <= 0 {
			return TradeForm{}, fmt.Errorf("invalid buy amount %v", req.AmountSol)
		}
		form.Amount = strconv.FormatFloat(req.AmountSol, 'f', -1, 64)
		form.DenominatedInSol = true
		if slippage <= 0 {
			slippage = e.cfg.BuySlippageBps
		}
	case domain.ActionSell:
		form.Amount = "100%"
		form.DenominatedInSol = false
		if slippage <= 0 {
			slippage = e.cfg.SellSlippageBps
		}
	default:
		return TradeForm{}, fmt.Errorf("unknown action %q", req.Action)
	}
	form.SlippagePct = float64(slippage) / 100
	return form, nil
}

func (e *Engine) build(ctx context.Context, form TradeForm) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	start := e.now()
	defer func() { e.metrics.ObserveCall("build", e.now().Sub(start)) }()
	return e.builder.BuildTransaction(ctx, form)
}

func (e *Engine) submit(ctx context.Context, signed []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	start := e.now()
	defer func() { e.metrics.ObserveCall("submit", e.now().Sub(start)) }()
	return e.chain.SendTransaction(ctx, signed)
}

func (e *Engine) record(ctx context.Context, req domain.TradeRequest, res domain.TradeResult) {
	if e.journal == nil {
		return
	}
	entry := &domain.JournalEntry{
		ID:          uuid.NewString(),
		Identity:    req.ActorIdentity,
		Action:      req.Action,
		Mint:        req.Mint,
		AmountSol:   req.AmountSol,
		Succeeded:   res.Succeeded,
		ErrorClass:  res.ErrorClass,
		Signature:   res.Signature,
		Message:     res.Message,
		CreatedAtMs: e.now().UnixMilli(),
	}
	if err := e.journal.Append(ctx, entry); err != nil {
		e.logger.Error("journal append failed", "identity", req.ActorIdentity, "error", err)
	}
}

func failure(class domain.ErrorClass, msg string, cause error) domain.TradeResult {
	res := domain.TradeResult{
		Succeeded:  false,
		Message:    msg,
		ErrorClass: class,
	}
	if cause != nil {
		res.Detail = cause.Error()
	}
	return res
}

// IsNoWallet reports whether err means the identity has no custody record.
func IsNoWallet(err error) bool {
	return errors.Is(err, custody.ErrKeyNotFound)
}
