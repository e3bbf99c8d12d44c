package experiment

import (
	"context"
	"time"

	"github.com/nidhogg/emergence/internal/knowledge"
)

// TurnEvent describes one completed conversational turn for external
// observers. Observers never gain access to agent memories through it; the
// event carries only what the global log already records.
type TurnEvent struct {
	ExperimentID string    `json:"experiment_id"`
	Phase        string    `json:"phase"`
	Turn         int       `json:"turn"`
	Speaker      string    `json:"speaker"`
	Content      string    `json:"content"`
	Recipients   []string  `json:"recipients"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventPublisher receives turn events, typically backed by a stream.
type EventPublisher interface {
	PublishTurn(ctx context.Context, ev *TurnEvent) error
}

// Notifier receives human-readable progress notes (phase and round
// completions).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// TrustMirror receives applied trust updates, typically backed by a graph
// database.
type TrustMirror interface {
	Mirror(ctx context.Context, truster, trustee string, score float64)
}

// Persister stores run artifacts. Best effort: the run continues when a
// write fails.
type Persister interface {
	SaveTurn(ctx context.Context, experimentID string, ev *TurnEvent) error
	SaveIntegration(ctx context.Context, experimentID string, res *knowledge.Result) error
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
}
