package memory

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// RoutingError reports delivery to an unregistered recipient. Routing to the
// remaining recipients continues; the error is surfaced for metrics only.
type RoutingError struct {
	Recipient string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("no memory registered for recipient %q", e.Recipient)
}

// Arena holds every agent's private memory, indexed by name. All mutation
// goes through Route: that is what keeps the isolation invariant — an agent's
// history grows only when it speaks or is named a recipient.
type Arena struct {
	memories map[string]*AgentMemory
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewArena creates an empty arena.
func NewArena(logger *zap.Logger) *Arena {
	return &Arena{
		memories: make(map[string]*AgentMemory),
		logger:   logger,
	}
}

// Add registers an empty memory for an agent. Idempotent.
func (a *Arena) Add(agentID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.memories[agentID]; !ok {
		a.memories[agentID] = NewAgentMemory(agentID)
	}
}

// Get returns the memory for an agent.
func (a *Arena) Get(agentID string) (*AgentMemory, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.memories[agentID]
	return m, ok
}

// Names returns all registered agent names, sorted.
func (a *Arena) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.memories))
	for n := range a.memories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Route records the utterance in the speaker's memory as its own, then
// delivers a private copy to every named recipient. Agents neither speaking
// nor named receive nothing. An empty recipient set makes the utterance
// private to the speaker. Unknown recipients are skipped with a warning and
// collected into the returned slice; they never abort the other deliveries.
func (a *Arena) Route(speaker, content string, recipients []string) (Message, []error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sm, ok := a.memories[speaker]
	if !ok {
		// Late-registered speakers get a memory on the fly.
		sm = NewAgentMemory(speaker)
		a.memories[speaker] = sm
		a.logger.Warn("route: speaker had no memory, created one", zap.String("speaker", speaker))
	}
	msg := sm.RecordSelf(content)

	var errs []error
	for _, name := range recipients {
		if name == speaker {
			continue
		}
		rm, ok := a.memories[name]
		if !ok {
			err := &RoutingError{Recipient: name}
			errs = append(errs, err)
			a.logger.Warn("route: unknown recipient skipped",
				zap.String("speaker", speaker),
				zap.String("recipient", name))
			continue
		}
		rm.RecordFrom(speaker, content)
	}
	return msg, errs
}
