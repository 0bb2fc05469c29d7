package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

// botAPIServer fakes the Telegram Bot API methods the channel uses.
type botAPIServer struct {
	*httptest.Server
	mu       sync.Mutex
	calls    map[string][]url.Values
	updates  string
	served   bool
	failSend bool
	// hold, when set, blocks getUpdates until it is closed or the client goes away.
	hold chan struct{}
}

func newBotAPIServer(t *testing.T) *botAPIServer {
	t.Helper()
	s := &botAPIServer{calls: map[string][]url.Values{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *botAPIServer) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Path is /bot<token>/<method>.
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	method := parts[len(parts)-1]

	s.mu.Lock()
	s.calls[method] = append(s.calls[method], r.PostForm)
	failSend := s.failSend
	hold := s.hold
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"rugwatch","username":"rugwatch_bot"}}`))
	case "sendMessage":
		if failSend {
			w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":1,"type":"private"}}}`))
	case "answerCallbackQuery":
		w.Write([]byte(`{"ok":true,"result":true}`))
	case "getUpdates":
		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		s.mu.Lock()
		body := `{"ok":true,"result":[]}`
		if !s.served {
			body = s.updates
			s.served = true
		}
		s.mu.Unlock()
		if body == `{"ok":true,"result":[]}` {
			time.Sleep(20 * time.Millisecond)
		}
		w.Write([]byte(body))
	default:
		w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
	}
}

func (s *botAPIServer) form(method string) []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.calls[method]...)
}

func newTestChannel(t *testing.T, s *botAPIServer) *TelegramChannel {
	t.Helper()
	ch, err := NewTelegramChannel("TOKEN", TelegramOptions{APIEndpoint: s.URL + "/bot%s/%s"})
	if err != nil {
		t.Fatalf("NewTelegramChannel: %v", err)
	}
	return ch
}

func TestTelegramChannel_Send(t *testing.T) {
	server := newBotAPIServer(t)
	ch := newTestChannel(t, server)
	if ch.Username() != "rugwatch_bot" {
		t.Errorf("Username() = %q", ch.Username())
	}

	mint := testMint(t)
	rows, err := SweepButtons(mint, DefaultSweepAmounts)
	if err != nil {
		t.Fatal(err)
	}
	if err := ch.Send(context.Background(), Message{ChatID: -100123, Text: "<b>alert</b>", Buttons: rows}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	calls := server.form("sendMessage")
	if len(calls) != 1 {
		t.Fatalf("sendMessage calls = %d", len(calls))
	}
	form := calls[0]
	if form.Get("chat_id") != "-100123" {
		t.Errorf("chat_id = %q", form.Get("chat_id"))
	}
	if form.Get("text") != "<b>alert</b>" {
		t.Errorf("text = %q", form.Get("text"))
	}
	if form.Get("parse_mode") != "HTML" {
		t.Errorf("parse_mode = %q", form.Get("parse_mode"))
	}

	var markup struct {
		InlineKeyboard [][]struct {
			Text         string `json:"text"`
			CallbackData string `json:"callback_data"`
		} `json:"inline_keyboard"`
	}
	if err := json.Unmarshal([]byte(form.Get("reply_markup")), &markup); err != nil {
		t.Fatalf("reply_markup: %v", err)
	}
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 4 {
		t.Fatalf("keyboard = %+v", markup.InlineKeyboard)
	}
	if got := markup.InlineKeyboard[0][0].CallbackData; got != "sweep|"+mint+"|0.1" {
		t.Errorf("callback_data = %q", got)
	}
}

func TestTelegramChannel_SendError(t *testing.T) {
	server := newBotAPIServer(t)
	ch := newTestChannel(t, server)
	server.mu.Lock()
	server.failSend = true
	server.mu.Unlock()

	err := ch.Send(context.Background(), Message{ChatID: 5, Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("Send error = %v", err)
	}
}

func TestTelegramChannel_AnswerCallback(t *testing.T) {
	server := newBotAPIServer(t)
	ch := newTestChannel(t, server)

	if err := ch.AnswerCallback(context.Background(), "cb-1", ""); err != nil {
		t.Fatalf("AnswerCallback: %v", err)
	}
	calls := server.form("answerCallbackQuery")
	if len(calls) != 1 || calls[0].Get("callback_query_id") != "cb-1" {
		t.Errorf("answerCallbackQuery calls = %v", calls)
	}
}

func TestTelegramChannel_Updates(t *testing.T) {
	server := newBotAPIServer(t)
	server.updates = `{"ok":true,"result":[
		{"update_id":10,"callback_query":{"id":"cb-9","from":{"id":4242,"is_bot":false,"first_name":"op"},
			"message":{"message_id":3,"date":0,"chat":{"id":-100123,"type":"supergroup"}},"data":"sweep|x|0.1"}},
		{"update_id":11,"message":{"message_id":4,"date":0,"from":{"id":4242,"is_bot":false,"first_name":"op"},
			"chat":{"id":4242,"type":"private"},"text":"/wallet now",
			"entities":[{"type":"bot_command","offset":0,"length":7}]}},
		{"update_id":12,"message":{"message_id":5,"date":0,"from":{"id":4242,"is_bot":false,"first_name":"op"},
			"chat":{"id":4242,"type":"private"},"text":"hello"}}
	]}`
	ch := newTestChannel(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := ch.Updates(ctx, 1)

	var got []Update
	for len(got) < 2 {
		select {
		case u := <-updates:
			got = append(got, u)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d updates", len(got))
		}
	}

	cb := got[0].Callback
	if cb == nil || cb.ID != "cb-9" || cb.From != 4242 || cb.ChatID != -100123 || cb.Data != "sweep|x|0.1" {
		t.Errorf("callback = %+v", cb)
	}
	cmd := got[1].Command
	if cmd == nil || cmd.Name != "wallet" || cmd.Args != "now" || cmd.From != 4242 || cmd.ChatID != 4242 {
		t.Errorf("command = %+v", cmd)
	}

	// The next poll must acknowledge everything seen so far.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		calls := server.form("getUpdates")
		if len(calls) >= 2 {
			if off := calls[1].Get("offset"); off != "13" {
				t.Errorf("second poll offset = %q, want 13", off)
			}
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	for range updates {
	}
}

func TestNewTelegramChannel_BadToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	if _, err := NewTelegramChannel("bad", TelegramOptions{APIEndpoint: server.URL + "/bot%s/%s"}); err == nil {
		t.Error("expected auth error")
	}
}

func TestTelegramChannel_UpdatesCancelAbortsLongPoll(t *testing.T) {
	server := newBotAPIServer(t)
	hold := make(chan struct{})
	server.hold = hold
	t.Cleanup(func() { close(hold) })
	ch := newTestChannel(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	updates := ch.Updates(ctx, DefaultPollTimeout)

	deadline := time.Now().Add(5 * time.Second)
	for len(server.form("getUpdates")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("getUpdates never called")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("unexpected update")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("updates channel still open after cancel")
	}
}
