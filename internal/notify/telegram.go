package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram polling defaults.
const (
	DefaultPollTimeout = 30 // seconds, long-poll
	pollRetryDelay     = 3 * time.Second
)

// TelegramOptions configures the Telegram channel.
type TelegramOptions struct {
	// APIEndpoint is a format string taking token and method.
	// Defaults to tgbotapi.APIEndpoint.
	APIEndpoint string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// TelegramChannel delivers messages through the Telegram Bot API.
type TelegramChannel struct {
	bot    *tgbotapi.BotAPI
	logger *slog.Logger
}

var _ Channel = (*TelegramChannel)(nil)

// NewTelegramChannel authenticates the bot token with getMe.
func NewTelegramChannel(token string, opts TelegramOptions) (*TelegramChannel, error) {
	endpoint := opts.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Duration(DefaultPollTimeout+10) * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	logger = logger.With("component", "telegram")
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &TelegramChannel{bot: bot, logger: logger}, nil
}

// Username returns the bot's username.
func (t *TelegramChannel) Username() string {
	return t.bot.Self.UserName
}

// Send delivers an HTML message with optional inline controls.
func (t *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	m.ParseMode = tgbotapi.ModeHTML
	m.DisableWebPagePreview = true
	if len(msg.Buttons) > 0 {
		m.ReplyMarkup = inlineKeyboard(msg.Buttons)
	}
	if _, err := t.bot.Send(m); err != nil {
		return fmt.Errorf("telegram send to %d: %w", msg.ChatID, err)
	}
	return nil
}

// AnswerCallback acknowledges a pressed control.
func (t *TelegramChannel) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram answer callback: %w", err)
	}
	return nil
}

// Updates long-polls for commands and callbacks until ctx is done.
// The returned channel is closed on exit.
func (t *TelegramChannel) Updates(ctx context.Context, timeout int) <-chan Update {
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	out := make(chan Update)

	// Polls run on a copy of the bot whose requests carry ctx, so a pending
	// long-poll is aborted on cancel.
	poll := *t.bot
	poll.Client = contextClient{ctx: ctx, inner: t.bot.Client}

	go func() {
		defer close(out)

		cfg := tgbotapi.NewUpdate(0)
		cfg.Timeout = timeout
		cfg.AllowedUpdates = []string{"message", "callback_query"}

		for ctx.Err() == nil {
			updates, err := poll.GetUpdates(cfg)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				t.logger.Warn("get updates failed", "error", err, "retry_in", pollRetryDelay)
				select {
				case <-ctx.Done():
					return
				case <-time.After(pollRetryDelay):
				}
				continue
			}

			for _, u := range updates {
				if u.UpdateID >= cfg.Offset {
					cfg.Offset = u.UpdateID + 1
				}
				conv, ok := convertUpdate(u)
				if !ok {
					continue
				}
				select {
				case out <- conv:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// contextClient binds every request to ctx.
type contextClient struct {
	ctx   context.Context
	inner tgbotapi.HTTPClient
}

func (c contextClient) Do(req *http.Request) (*http.Response, error) {
	return c.inner.Do(req.WithContext(c.ctx))
}

func inlineKeyboard(rows [][]Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		kb = append(kb, tgbotapi.NewInlineKeyboardRow(r...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// convertUpdate keeps callbacks and slash commands.
func convertUpdate(u tgbotapi.Update) (Update, bool) {
	if q := u.CallbackQuery; q != nil {
		if q.From == nil {
			return Update{}, false
		}
		cb := &CallbackQuery{ID: q.ID, From: q.From.ID, Data: q.Data}
		if q.Message != nil && q.Message.Chat != nil {
			cb.ChatID = q.Message.Chat.ID
		}
		return Update{Callback: cb}, true
	}
	if m := u.Message; m != nil && m.IsCommand() && m.From != nil && m.Chat != nil {
		return Update{Command: &Command{
			From:   m.From.ID,
			ChatID: m.Chat.ID,
			Name:   m.Command(),
			Args:   m.CommandArguments(),
		}}, true
	}
	return Update{}, false
}
