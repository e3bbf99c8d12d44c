package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackSink posts notes to a Slack channel using a bot token.
type SlackSink struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackSink creates a sink posting to the given channel.
// token is the Bot User OAuth Token (xoxb-...).
func NewSlackSink(token, channel string, logger *zap.Logger) *SlackSink {
	return &SlackSink{
		client:  slack.New(token),
		channel: channel,
		logger:  logger,
	}
}

func (s *SlackSink) Platform() string { return "slack" }

// Send posts the text as a channel message.
func (s *SlackSink) Send(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", s.channel, err)
	}
	return nil
}
