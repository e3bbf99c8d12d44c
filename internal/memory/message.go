package memory

import (
	"time"

	"github.com/google/uuid"
)

// Role tags who produced a remembered message, from the owning agent's
// point of view.
type Role string

const (
	RoleSelf    Role = "self"
	RolePartner Role = "partner"
)

// Message is one remembered utterance. Immutable once created and owned
// exclusively by the memory that stores it: the same utterance delivered to
// two agents becomes two independent Message values.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// RoleContent is the exchange-format projection of a Message: the roles an
// LLM chat API expects.
type RoleContent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
