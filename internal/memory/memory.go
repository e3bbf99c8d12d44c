package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// NoHistory is the sentinel returned by Context when an agent has not yet
// spoken or been spoken to.
const NoHistory = "no conversation history yet"

// AgentMemory is one agent's private record of the run: its own utterances
// and the messages addressed directly to it, nothing else. History is
// append-only for the life of the run. Safe for concurrent reads while a
// run appends, so the HTTP surface can inspect memories mid-phase.
type AgentMemory struct {
	agentID  string
	mu       sync.RWMutex
	history  []Message
	partners map[string]struct{}
}

// NewAgentMemory creates an empty memory for an agent.
func NewAgentMemory(agentID string) *AgentMemory {
	return &AgentMemory{
		agentID:  agentID,
		partners: make(map[string]struct{}),
	}
}

// AgentID returns the owning agent's name.
func (m *AgentMemory) AgentID() string { return m.agentID }

// RecordSelf appends one of the agent's own utterances.
func (m *AgentMemory) RecordSelf(content string) Message {
	msg := newMessage(RoleSelf, content)
	m.mu.Lock()
	m.history = append(m.history, msg)
	m.mu.Unlock()
	return msg
}

// RecordFrom appends a message received directly from partner and marks the
// partner as a direct contact. The stored content carries the partner-name
// prefix so the agent knows who spoke.
func (m *AgentMemory) RecordFrom(partner, content string) Message {
	msg := newMessage(RolePartner, fmt.Sprintf("[%s]: %s", partner, content))
	m.mu.Lock()
	m.history = append(m.history, msg)
	m.partners[partner] = struct{}{}
	m.mu.Unlock()
	return msg
}

// Len returns the number of remembered messages.
func (m *AgentMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.history)
}

// History returns a copy of the full message history.
func (m *AgentMemory) History() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Message, len(m.history))
	copy(out, m.history)
	return out
}

// DirectPartners returns the sorted names of every agent this one has
// received at least one message from. Outgoing messages never add partners.
func (m *AgentMemory) DirectPartners() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.partners))
	for p := range m.partners {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// HasPartner reports whether the named agent is a direct partner.
func (m *AgentMemory) HasPartner(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.partners[name]
	return ok
}

// Context renders the last limit messages as a transcript for prompting.
// Pure read; returns the NoHistory sentinel for an empty memory.
func (m *AgentMemory) Context(limit int) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.history) == 0 {
		return NoHistory
	}
	start := 0
	if limit > 0 && len(m.history) > limit {
		start = len(m.history) - limit
	}

	var sb strings.Builder
	sb.WriteString("Your remembered conversation history:\n")
	for _, msg := range m.history[start:] {
		ts := msg.Timestamp.Format("15:04")
		if msg.Role == RoleSelf {
			sb.WriteString(fmt.Sprintf("[%s] me: %s\n", ts, msg.Content))
		} else {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, msg.Content))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RoleContentPairs projects the history into chat-API form: self messages
// become "assistant", partner messages "user" (keeping the [name]: prefix).
// Exactly one pair per stored message, in original order.
func (m *AgentMemory) RoleContentPairs() []RoleContent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pairs := make([]RoleContent, len(m.history))
	for i, msg := range m.history {
		role := "user"
		if msg.Role == RoleSelf {
			role = "assistant"
		}
		pairs[i] = RoleContent{Role: role, Content: msg.Content}
	}
	return pairs
}
