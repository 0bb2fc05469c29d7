package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rugwatch/internal/custody"
	"rugwatch/internal/domain"
	"rugwatch/internal/ingestion"
	"rugwatch/internal/storage/memory"
	"rugwatch/internal/trading"
	"rugwatch/internal/watchlist"
)

// fakeChannel records everything sent through it.
type fakeChannel struct {
	mu      sync.Mutex
	events  []string // "ack:<id>" or "send"
	sent    []Message
	sendErr error
	notify  chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{notify: make(chan struct{}, 16)}
}

func (f *fakeChannel) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	f.events = append(f.events, "send")
	f.sent = append(f.sent, msg)
	err := f.sendErr
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
	return err
}

func (f *fakeChannel) AnswerCallback(_ context.Context, id, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "ack:"+id)
	return nil
}

func (f *fakeChannel) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func (f *fakeChannel) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// fakeTrader records requests and answers with a canned result.
type fakeTrader struct {
	mu       sync.Mutex
	requests []domain.TradeRequest
	result   domain.TradeResult
}

func (f *fakeTrader) Buy(_ context.Context, req domain.TradeRequest) domain.TradeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result
}

func (f *fakeTrader) Sell(ctx context.Context, req domain.TradeRequest) domain.TradeResult {
	return f.Buy(ctx, req)
}

func (f *fakeTrader) calls() []domain.TradeRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TradeRequest(nil), f.requests...)
}

type fixedBalance uint64

func (b fixedBalance) GetBalance(context.Context, string) (uint64, error) {
	return uint64(b), nil
}

const (
	alertChat = int64(-100123)
	operator  = int64(4242)
)

type fixture struct {
	channel    *fakeChannel
	trader     *fakeTrader
	wallets    *custody.Store
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	wallets, err := custody.New(context.Background(), memory.NewCustodyStore(), memory.NewSaltStore(), custody.Options{})
	require.NoError(t, err)

	f := &fixture{
		channel: newFakeChannel(),
		trader:  &fakeTrader{result: domain.TradeResult{Succeeded: true, Message: "https://solscan.io/tx/sig1", Signature: "sig1"}},
		wallets: wallets,
	}
	f.dispatcher = NewDispatcher(f.channel, f.trader, wallets,
		DispatcherConfig{AlertChatID: alertChat},
		DispatcherOptions{Balances: fixedBalance(2_000_000_000), Watchlist: memoryWatchlist(3)},
	)
	return f
}

type memoryWatchlist int

func (m memoryWatchlist) Size() int { return int(m) }

func TestWatchlistedLaunchDispatchesOneAlert(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewWatchlistStore(domain.WatchlistEntry{Address: "Addr123...", ReportCount: 1})
	matcher := watchlist.NewMatcher(store, watchlist.MatcherOptions{})
	require.NoError(t, matcher.Refresh(ctx))

	source := &scriptedSource{drained: make(chan struct{}), events: []domain.CreationEvent{
		{EventType: "create", CreatorAddress: "Someone", MintAddress: "Other", TokenName: "Bar", Symbol: "BAR"},
		{
			EventType:      "create",
			CreatorAddress: "Addr123...",
			MintAddress:    "Mint456...",
			TokenName:      "Foo",
			Symbol:         "FOO",
			MarketCapSol:   42.0,
		},
	}}
	runner := ingestion.NewRunner(ingestion.RunnerOptions{Source: source, Matcher: matcher, Alerter: f.dispatcher})
	go runner.Run(ctx)

	select {
	case <-f.channel.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("no alert dispatched")
	}
	<-source.drained
	// Give the runner a moment to process anything it still holds.
	time.Sleep(50 * time.Millisecond)

	msgs := f.channel.messages()
	require.Len(t, msgs, 1)
	alert := msgs[0]
	assert.Equal(t, alertChat, alert.ChatID)
	for _, want := range []string{"Foo", "FOO", "Addr123...", "Mint456..."} {
		assert.Contains(t, alert.Text, want)
	}
	require.Len(t, alert.Buttons, 1)
	assert.Len(t, alert.Buttons[0], 4)
	for _, b := range alert.Buttons[0] {
		assert.True(t, strings.HasPrefix(b.Data, "sweep|Mint456...|"), b.Data)
	}
}

func TestOnActionWithoutWalletNeverTrades(t *testing.T) {
	f := newFixture(t)
	mint := testMint(t)

	rows, err := SweepButtons(mint, DefaultSweepAmounts)
	require.NoError(t, err)
	control := rows[0][0]
	require.Equal(t, "0.1 SOL", control.Text)

	f.dispatcher.OnAction(context.Background(), CallbackQuery{ID: "cb1", From: operator, ChatID: alertChat, Data: control.Data})

	assert.Empty(t, f.trader.calls())
	msgs := f.channel.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, operator, msgs[0].ChatID)
	assert.Contains(t, strings.ToLower(msgs[0].Text), "no wallet found")
	assert.Equal(t, []string{"ack:cb1", "send"}, f.channel.log())
}

func TestOnActionBuysWithProvisionedWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.wallets.Provision(ctx, "4242")
	require.NoError(t, err)

	mint := testMint(t)
	data, err := Callback{Kind: KindSweep, Mint: mint, AmountSol: 0.25}.Encode()
	require.NoError(t, err)

	f.dispatcher.OnAction(ctx, CallbackQuery{ID: "cb2", From: operator, ChatID: alertChat, Data: data})

	calls := f.trader.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.TradeRequest{ActorIdentity: "4242", Action: domain.ActionBuy, Mint: mint, AmountSol: 0.25}, calls[0])

	msgs := f.channel.messages()
	require.Len(t, msgs, 1)
	reply := msgs[0]
	assert.Equal(t, operator, reply.ChatID, "trade result goes privately to the invoker")
	assert.Contains(t, reply.Text, "https://solscan.io/tx/sig1")
	require.Len(t, reply.Buttons, 1)
	sell, err := ParseCallback(reply.Buttons[0][0].Data)
	require.NoError(t, err)
	assert.Equal(t, Callback{Kind: KindSell, Mint: mint}, sell)

	assert.Equal(t, "ack:cb2", f.channel.log()[0])
}

func TestOnActionSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.wallets.Provision(ctx, "4242")
	require.NoError(t, err)
	f.trader.result = domain.TradeResult{ErrorClass: domain.ErrorClassAccountNotFound, Message: trading.MsgAccountNotFound}

	mint := testMint(t)
	data, err := Callback{Kind: KindSell, Mint: mint}.Encode()
	require.NoError(t, err)
	f.dispatcher.OnAction(ctx, CallbackQuery{ID: "cb3", From: operator, Data: data})

	calls := f.trader.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.ActionSell, calls[0].Action)

	msgs := f.channel.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "AccountNotFound")
	assert.Empty(t, msgs[0].Buttons)
}

func TestOnActionRejectsMalformedPayload(t *testing.T) {
	f := newFixture(t)
	_, err := f.wallets.Provision(context.Background(), "4242")
	require.NoError(t, err)

	tests := []struct {
		data string
		want string
	}{
		{"sweep|0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl|0.1", trading.MsgInvalidAddress},
		{"garbage", MsgInvalidCallback},
		{"sweep|" + testMint(t) + "|-1", MsgInvalidCallback},
	}
	for _, tt := range tests {
		f.channel.sent = nil
		f.dispatcher.OnAction(context.Background(), CallbackQuery{ID: "x", From: operator, Data: tt.data})
		msgs := f.channel.messages()
		require.Len(t, msgs, 1, tt.data)
		assert.Equal(t, tt.want, msgs[0].Text, tt.data)
	}
	assert.Empty(t, f.trader.calls())
}

func TestAlertDeliveryFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.channel.sendErr = errors.New("chat not found")

	err := f.dispatcher.Alert(context.Background(), domain.CreationEvent{MintAddress: "Mint456"}, domain.WatchlistEntry{ReportCount: 1})
	assert.Error(t, err)
}

func TestReplyFailureDoesNotPanic(t *testing.T) {
	f := newFixture(t)
	f.channel.sendErr = errors.New("blocked by user")
	f.dispatcher.OnAction(context.Background(), CallbackQuery{ID: "cb", From: operator, Data: "garbage"})
	f.dispatcher.OnCommand(context.Background(), Command{From: operator, ChatID: operator, Name: "wallet"})
}

func TestWalletCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dispatcher.OnCommand(ctx, Command{From: operator, ChatID: operator, Name: "wallet"})
	w, err := f.wallets.Get(ctx, "4242")
	require.NoError(t, err)

	f.dispatcher.OnCommand(ctx, Command{From: operator, ChatID: operator, Name: "wallet"})
	again, err := f.wallets.Get(ctx, "4242")
	require.NoError(t, err)
	assert.Equal(t, w.PrivateKey, again.PrivateKey, "second /wallet must not replace the key")

	msgs := f.channel.messages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Text, MsgWalletCreated)
	assert.Contains(t, msgs[0].Text, w.Address)
	assert.Contains(t, msgs[0].Text, "Balance: 2 SOL")
	assert.Contains(t, msgs[1].Text, MsgWalletExists)
	assert.Contains(t, msgs[1].Text, w.Address)
	for _, m := range msgs {
		assert.NotContains(t, m.Text, w.PrivateKey)
		assert.Equal(t, operator, m.ChatID)
	}
}

func TestBalanceAndStartCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.dispatcher.OnCommand(ctx, Command{From: operator, ChatID: alertChat, Name: "balance"})
	f.dispatcher.OnCommand(ctx, Command{From: operator, ChatID: alertChat, Name: "start"})
	f.dispatcher.OnCommand(ctx, Command{From: operator, ChatID: alertChat, Name: "nope"})

	msgs := f.channel.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, trading.MsgNoWallet, msgs[0].Text)
	assert.Equal(t, operator, msgs[0].ChatID)
	assert.Contains(t, msgs[1].Text, "Watching 3 flagged creator addresses")
	assert.Equal(t, alertChat, msgs[1].ChatID)
	assert.Equal(t, MsgUnknownCommand, msgs[2].Text)
}

// scriptedSource emits its events then idles until cancelled.
type scriptedSource struct {
	events  []domain.CreationEvent
	drained chan struct{}
}

func (s *scriptedSource) Run(ctx context.Context, out chan<- domain.CreationEvent) error {
	for _, e := range s.events {
		select {
		case out <- e:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	close(s.drained)
	<-ctx.Done()
	return ctx.Err()
}

func TestBalanceUnreadableWalletIsNotMissing(t *testing.T) {
	ctx := context.Background()
	records := memory.NewCustodyStore()
	wallets, err := custody.New(ctx, records, memory.NewSaltStore(), custody.Options{})
	require.NoError(t, err)
	require.NoError(t, records.Insert(ctx, domain.CustodyRecord{Identity: identityOf(operator), Ciphertext: "v1:garbage"}))

	channel := newFakeChannel()
	d := NewDispatcher(channel, &fakeTrader{}, wallets, DispatcherConfig{AlertChatID: alertChat}, DispatcherOptions{})
	d.OnCommand(ctx, Command{From: operator, ChatID: alertChat, Name: "balance"})

	msgs := channel.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgWalletLookup, msgs[0].Text)
	assert.Equal(t, operator, msgs[0].ChatID)
}
