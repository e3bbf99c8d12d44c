package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is the external text-generation capability the simulation core
// depends on. Implementations must honor ctx deadlines and report timeouts
// through GenerationError so callers can degrade instead of aborting.
type Provider interface {
	ID() string
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request is a generation request: a system prompt, prior exchange context
// in chat form, and the prompt for this turn.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the provider's reply.
type Response struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ErrorKind classifies generation failures.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindAPI     ErrorKind = "api"
)

// GenerationError is a classified provider failure. The simulation core
// treats both kinds as degradable: the affected extract or turn is marked
// failed and the run continues.
type GenerationError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation %s (%s): %v", e.Kind, e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a generation timeout.
func IsTimeout(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge) && ge.Kind == KindTimeout
}

// classify wraps a transport error, mapping context deadline expiry to the
// timeout kind.
func classify(providerID string, err error) error {
	kind := KindAPI
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &GenerationError{Kind: kind, Provider: providerID, Err: err}
}

// Config holds configuration for a provider instance.
type Config struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Model    string            `json:"model"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}
