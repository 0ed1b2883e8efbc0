// internal/notify/telegram.go

// Package notify delivers export progress messages to an operator channel.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxTelegramMessage = 4096

// Notifier delivers one operator-facing message.
type Notifier interface {
	Send(message string) error
}

// Nop discards messages. Used when no channel is configured.
type Nop struct{}

func (Nop) Send(string) error { return nil }

// Telegram sends messages to a fixed chat via a bot.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Send(message string) error {
	if len(message) > maxTelegramMessage {
		message = message[:maxTelegramMessage]
	}
	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
