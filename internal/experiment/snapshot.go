package experiment

import (
	"time"

	"github.com/nidhogg/emergence/internal/knowledge"
)

// AgentSummary is the per-agent slice of a snapshot.
type AgentSummary struct {
	Name           string   `json:"name"`
	Personality    string   `json:"personality"`
	Strategy       string   `json:"strategy"`
	MemorySize     int      `json:"memory_size"`
	DirectPartners []string `json:"direct_partners"`
}

// Snapshot is the serializable state of a run handed to the persistence
// collaborator. The global conversation log lives only here — agents never
// read it.
type Snapshot struct {
	ExperimentID          string                        `json:"experiment_id"`
	Timestamp             time.Time                     `json:"timestamp"`
	Agents                []AgentSummary                `json:"agents"`
	TrustMatrix           map[string]map[string]float64 `json:"trust_matrix"`
	GlobalConversationLog []*TurnEvent                  `json:"global_conversation_log"`
	IntegrationHistory    []*knowledge.Result           `json:"integration_history"`
}

// Snapshot assembles the current run state.
func (r *Runner) Snapshot() *Snapshot {
	snap := &Snapshot{
		ExperimentID:       r.experimentID,
		Timestamp:          time.Now(),
		TrustMatrix:        r.matrix.Snapshot(),
		IntegrationHistory: r.integrator.History(),
	}

	for _, p := range r.roster.List() {
		summary := AgentSummary{
			Name:        p.Name,
			Personality: string(p.Personality),
			Strategy:    string(p.Strategy),
		}
		if mem, ok := r.arena.Get(p.Name); ok {
			summary.MemorySize = mem.Len()
			summary.DirectPartners = mem.DirectPartners()
		}
		snap.Agents = append(snap.Agents, summary)
	}

	r.mu.Lock()
	snap.GlobalConversationLog = make([]*TurnEvent, len(r.conversationLog))
	copy(snap.GlobalConversationLog, r.conversationLog)
	r.mu.Unlock()

	return snap
}
