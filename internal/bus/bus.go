package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/experiment"
)

const turnStream = "emergence:turns"

// Bus publishes turn events to a Redis Stream so external observers can
// follow a run without any access to agent memories.
type Bus struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// New connects to Redis and returns a bus.
func New(redisURL string, logger *zap.Logger) (*Bus, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Bus{rdb: rdb, logger: logger}, nil
}

// PublishTurn implements experiment.EventPublisher.
func (b *Bus) PublishTurn(ctx context.Context, ev *experiment.TurnEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: turnStream,
		Values: map[string]interface{}{"data": string(data)},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish turn to %s: %w", turnStream, err)
	}
	b.logger.Debug("published turn event",
		zap.String("experiment", ev.ExperimentID),
		zap.String("speaker", ev.Speaker),
		zap.Int("turn", ev.Turn))
	return nil
}

// Subscribe listens for turn events on the stream. Returns a channel that
// emits events; cancel the context to stop.
func (b *Bus) Subscribe(ctx context.Context) <-chan *experiment.TurnEvent {
	ch := make(chan *experiment.TurnEvent, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{turnStream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, msg := range r.Messages {
					lastID = msg.ID
					data, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}
					var ev experiment.TurnEvent
					if json.Unmarshal([]byte(data), &ev) == nil {
						ch <- &ev
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (b *Bus) Close() error {
	return b.rdb.Close()
}
