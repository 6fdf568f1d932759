package notify

import (
	"context"

	"github.com/harunnryd/mezame/internal/config"
	"github.com/harunnryd/mezame/internal/history"

	"github.com/slack-go/slack"
)

// SlackNotifier posts wake outcomes to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlack(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(cfg.BotToken),
		channel: cfg.Channel,
	}
}

func (s *SlackNotifier) Name() string {
	return "slack"
}

func (s *SlackNotifier) WakeCompleted(ctx context.Context, rec history.WakeRecord) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(FormatWake(rec), false))
	return err
}
