package notify

import (
	"context"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/history"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends wake outcomes to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) WakeCompleted(ctx context.Context, rec history.WakeRecord) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatWake(rec))
	_, err := t.bot.Send(msg)
	return err
}
