package agent

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrAgentNotFound is returned when a name resolves to no registered agent.
var ErrAgentNotFound = fmt.Errorf("agent not found")

// Roster holds every agent taking part in a run. Registration happens at
// simulation start; lookups afterwards are read-mostly.
type Roster struct {
	agents map[string]*Profile
	order  []string // registration order, for deterministic iteration
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRoster creates an empty roster.
func NewRoster(logger *zap.Logger) *Roster {
	return &Roster{
		agents: make(map[string]*Profile),
		logger: logger,
	}
}

// Register adds a profile. Re-registering a name replaces the profile but
// keeps its position in the registration order.
func (r *Roster) Register(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[p.Name]; !ok {
		r.order = append(r.order, p.Name)
	}
	r.agents[p.Name] = p
	r.logger.Info("registered agent",
		zap.String("name", p.Name),
		zap.String("personality", string(p.Personality)),
		zap.String("strategy", string(p.Strategy)))
}

// Get returns the profile for a name.
func (r *Roster) Get(name string) (*Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.agents[name]
	return p, ok
}

// List returns all profiles in registration order.
func (r *Roster) List() []*Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Profile, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// Names returns all agent names in registration order.
func (r *Roster) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Others returns every registered name except the given one, sorted.
func (r *Roster) Others(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for n := range r.agents {
		if n != name {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered agents.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
