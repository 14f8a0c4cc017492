package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PaulSonOfLars/gotgbot/v2"

	"github.com/dhowcruise/booking-platform/internal/model"
)

// telegramSender is the part of *gotgbot.Bot the channel uses.
type telegramSender interface {
	SendMessageWithContext(ctx context.Context, chatID int64, text string, opts *gotgbot.SendMessageOpts) (*gotgbot.Message, error)
}

// Telegram posts alerts to admin chats through a bot.
type Telegram struct {
	bot      telegramSender
	chats    []int64
	adminURL string
}

// NewTelegram creates a Telegram channel, or returns nil when no token or
// chat is configured.
func NewTelegram(token string, chats []int64, adminURL string) (*Telegram, error) {
	if token == "" || len(chats) == 0 {
		return nil, nil
	}
	b, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: b, chats: chats, adminURL: adminURL}, nil
}

// Name implements Notifier.
func (t *Telegram) Name() string { return "telegram" }

// NotifyHumanRequested implements Notifier.
func (t *Telegram) NotifyHumanRequested(ctx context.Context, conv *model.Conversation) error {
	a := humanRequestAlert(conv, t.adminURL)

	var sb strings.Builder
	sb.WriteString("<b>" + html.EscapeString(a.Subject) + "</b>\n")
	for _, line := range a.Lines {
		sb.WriteString(html.EscapeString(line) + "\n")
	}
	if a.Link != "" {
		fmt.Fprintf(&sb, "\n<a href=\"%s\">Open the chat dashboard</a>", html.EscapeString(a.Link))
	}
	text := sb.String()

	var errs []error
	for _, chatID := range t.chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := t.bot.SendMessageWithContext(ctx, chatID, text, &gotgbot.SendMessageOpts{ParseMode: "HTML"})
		if err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}
