// Package notify pushes human-readable progress notes from running
// experiments to chat platforms. Delivery is one-way and best effort.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Sink delivers a single note to one platform.
type Sink interface {
	Platform() string
	Send(ctx context.Context, text string) error
}

// Broadcaster fans a note out to every configured sink. A failing sink is
// logged and skipped; notifications never interrupt a run.
type Broadcaster struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewBroadcaster creates a broadcaster over the given sinks.
func NewBroadcaster(logger *zap.Logger, sinks ...Sink) *Broadcaster {
	return &Broadcaster{
		sinks:  sinks,
		logger: logger,
	}
}

// Notify sends text to all sinks.
func (b *Broadcaster) Notify(ctx context.Context, text string) error {
	for _, s := range b.sinks {
		if err := s.Send(ctx, text); err != nil {
			b.logger.Warn("notification delivery failed",
				zap.String("platform", s.Platform()),
				zap.Error(err))
		}
	}
	return nil
}

// Platforms lists the configured sink platforms.
func (b *Broadcaster) Platforms() []string {
	names := make([]string, 0, len(b.sinks))
	for _, s := range b.sinks {
		names = append(names, s.Platform())
	}
	return names
}
