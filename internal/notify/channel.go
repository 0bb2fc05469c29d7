// Package notify formats alerts, delivers them through a messaging channel
// and routes operator actions to the trade engine.
package notify

import "context"

// Button is an actionable control attached to a message.
type Button struct {
	Text string
	Data string // opaque callback payload
	URL  string // link button when set; Data is then ignored
}

// Message is one outbound message. Text is HTML.
type Message struct {
	ChatID  int64
	Text    string
	Buttons [][]Button // rows of controls
}

// Channel is the messaging transport.
type Channel interface {
	Send(ctx context.Context, msg Message) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// CallbackQuery is a pressed control.
type CallbackQuery struct {
	ID     string
	From   int64 // invoker user id
	ChatID int64 // chat the control was pressed in
	Data   string
}

// Command is a slash command sent to the bot.
type Command struct {
	From   int64
	ChatID int64
	Name   string // without the leading slash
	Args   string
}

// Update is one inbound event. Exactly one field is set.
type Update struct {
	Callback *CallbackQuery
	Command  *Command
}
