package notify

import (
	"fmt"

	"github.com/vcscsvcscs/adherence-engine/internal/azure"
	"github.com/vcscsvcscs/adherence-engine/internal/config"
	"github.com/vcscsvcscs/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// Setup builds a dispatcher with a sender for every configured channel
func Setup(cfg config.NotifyConfig, ai config.OpenAIConfig, logger *zap.Logger) (*Dispatcher, error) {
	var composer Composer = NewTemplateComposer()
	if cfg.Composer.Mode == "openai" {
		client, err := azure.NewOpenAIClient(ai.Endpoint, ai.APIKey, ai.Deployment, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create reminder composer: %w", err)
		}
		composer = NewAIComposer(client, composer, cfg.Composer.Timeout, logger)
	}

	dispatcher := NewDispatcher(composer, logger)

	if cfg.SMTP.Host != "" {
		email, err := NewEmailSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create email sender: %w", err)
		}
		dispatcher.Register(model.ChannelEmail, email)
	}

	if cfg.Telegram.Token != "" {
		bot, err := NewTelegramBot(cfg.Telegram.Token)
		if err != nil {
			return nil, err
		}
		dispatcher.Register(model.ChannelPush, NewTelegramSender(bot, logger))
	}

	if len(dispatcher.Channels()) == 0 {
		logger.Warn("no notification channel configured, reminders are counted but not delivered")
	}
	return dispatcher, nil
}
