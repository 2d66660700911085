// Package notify delivers manager alerts over Telegram.
package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"dentsched/internal/model"
)

type telegramClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

// TelegramNotifier pushes schedule alerts to the configured manager chats.
type TelegramNotifier struct {
	tg       telegramClient
	managers []int64
	logger   *zerolog.Logger
}

// NewTelegram connects to the Bot API and returns a notifier.
func NewTelegram(token string, managers []int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	return &TelegramNotifier{tg: &realTelegramClient{api: api}, managers: managers, logger: logger}, nil
}

// NewTelegramWithClient allows injecting a mocked Telegram client for tests.
func NewTelegramWithClient(tg telegramClient, managers []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{tg: tg, managers: managers, logger: logger}
}

// NotifyDateBlocked tells managers a provider blocked a date that still has
// active appointments on it, so they can reach out to the patients.
// Delivery is best effort.
func (n *TelegramNotifier) NotifyDateBlocked(ctx context.Context, provider *model.Provider, date, branch string, activeAppointments int) {
	text := fmt.Sprintf(
		"%s marked %s at %s as unavailable.\n%d active appointment(s) on that date need rescheduling.",
		provider.FullName(), date, branch, activeAppointments)

	for _, chatID := range n.managers {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.tg.Send(msg); err != nil && n.logger != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("manager notification failed")
		}
	}
}
