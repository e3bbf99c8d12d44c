package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nidhogg/emergence/internal/experiment"
	"github.com/nidhogg/emergence/internal/knowledge"
)

// SaveTurn appends one conversation turn to the global log table.
func (s *Store) SaveTurn(ctx context.Context, experimentID string, ev *experiment.TurnEvent) error {
	recipients, _ := json.Marshal(ev.Recipients)
	_, err := s.db.Exec(ctx, `
		INSERT INTO turns (experiment_id, phase, turn, speaker, content, recipients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		experimentID, ev.Phase, ev.Turn, ev.Speaker, ev.Content, recipients, ev.Timestamp)
	if err != nil {
		return fmt.Errorf("save turn %d: %w", ev.Turn, err)
	}
	return nil
}

// ListTurns returns the global conversation log for an experiment in order.
func (s *Store) ListTurns(ctx context.Context, experimentID string) ([]*experiment.TurnEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT phase, turn, speaker, content, recipients, created_at
		FROM turns WHERE experiment_id = $1 ORDER BY turn`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var events []*experiment.TurnEvent
	for rows.Next() {
		ev := &experiment.TurnEvent{ExperimentID: experimentID}
		var recipients []byte
		if err := rows.Scan(&ev.Phase, &ev.Turn, &ev.Speaker, &ev.Content, &recipients, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		_ = json.Unmarshal(recipients, &ev.Recipients)
		events = append(events, ev)
	}
	return events, nil
}

// SaveIntegration stores one integration round result.
func (s *Store) SaveIntegration(ctx context.Context, experimentID string, res *knowledge.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal integration: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO integrations (id, experiment_id, topic, emergence_score, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, experimentID, res.Topic, res.EmergenceScore, payload, res.Timestamp)
	if err != nil {
		return fmt.Errorf("save integration %s: %w", res.ID, err)
	}
	return nil
}

// ListIntegrations returns integration results for an experiment, oldest first.
func (s *Store) ListIntegrations(ctx context.Context, experimentID string) ([]*knowledge.Result, error) {
	rows, err := s.db.Query(ctx, `
		SELECT payload FROM integrations
		WHERE experiment_id = $1 ORDER BY created_at`, experimentID)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var results []*knowledge.Result
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		res := &knowledge.Result{}
		if err := json.Unmarshal(payload, res); err != nil {
			return nil, fmt.Errorf("decode integration: %w", err)
		}
		results = append(results, res)
	}
	return results, nil
}

// SaveSnapshot upserts the serialized run snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap *experiment.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO snapshots (experiment_id, taken_at, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (experiment_id) DO UPDATE SET
			taken_at = EXCLUDED.taken_at,
			payload = EXCLUDED.payload`,
		snap.ExperimentID, snap.Timestamp, payload)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.ExperimentID, err)
	}
	return nil
}

// GetSnapshot retrieves the latest snapshot for an experiment.
func (s *Store) GetSnapshot(ctx context.Context, experimentID string) (*experiment.Snapshot, error) {
	var payload []byte
	var takenAt time.Time
	err := s.db.QueryRow(ctx, `
		SELECT payload, taken_at FROM snapshots WHERE experiment_id = $1`,
		experimentID).Scan(&payload, &takenAt)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", experimentID, err)
	}
	snap := &experiment.Snapshot{}
	if err := json.Unmarshal(payload, snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
