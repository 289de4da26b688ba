package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// BotAPI is the subset of tgbotapi.BotAPI used for push delivery
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers push reminders as Telegram messages
type TelegramSender struct {
	bot    BotAPI
	logger *zap.Logger
}

// NewTelegramBot authenticates against the Bot API
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

func NewTelegramSender(bot BotAPI, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{bot: bot, logger: logger}
}

func (s *TelegramSender) Deliver(ctx context.Context, to model.Recipient, msg Message) error {
	if to.TelegramChatID == 0 {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	text := fmt.Sprintf("⏰ *%s*\n%s", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, msg.Subject), tgbotapi.EscapeText(tgbotapi.ModeMarkdown, msg.Body))
	out := tgbotapi.NewMessage(to.TelegramChatID, text)
	out.ParseMode = tgbotapi.ModeMarkdown

	if _, err := s.bot.Send(out); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	s.logger.Debug("reminder push sent", zap.String("user_id", to.UserID))
	return nil
}
