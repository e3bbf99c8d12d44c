package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordSink posts notes to a Discord channel through a bot session.
type DiscordSink struct {
	session *discordgo.Session
	channel string
	logger  *zap.Logger
}

// NewDiscordSink opens a Discord session for the bot token. Notifications
// only send outbound messages, so no gateway intents are requested.
func NewDiscordSink(token, channel string, logger *zap.Logger) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordSink{
		session: session,
		channel: channel,
		logger:  logger,
	}, nil
}

func (d *DiscordSink) Platform() string { return "discord" }

// Send posts the text to the configured channel.
func (d *DiscordSink) Send(_ context.Context, text string) error {
	if _, err := d.session.ChannelMessageSend(d.channel, text); err != nil {
		return fmt.Errorf("discord post to %s: %w", d.channel, err)
	}
	return nil
}

// Close releases the underlying session.
func (d *DiscordSink) Close() error {
	return d.session.Close()
}
