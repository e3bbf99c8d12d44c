package provider

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router manages the registered providers and routes generation requests by
// agent binding, falling back through a per-agent chain on failure.
type Router struct {
	providers map[string]Provider
	bindings  map[string]string   // agent name -> provider ID
	fallbacks map[string][]string // agent name -> fallback provider chain
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]string),
		fallbacks: make(map[string][]string),
		logger:    logger,
	}
}

// Register adds a provider. The first registered provider becomes the default.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault sets the default provider.
func (r *Router) SetDefault(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults = providerID
}

// Bind associates an agent with a specific provider.
func (r *Router) Bind(agentName, providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[agentName] = providerID
}

// SetFallbacks configures fallback providers for an agent.
func (r *Router) SetFallbacks(agentName string, providerIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks[agentName] = providerIDs
}

// Generate routes a request through the agent's provider, trying fallbacks
// in order when the primary fails.
func (r *Router) Generate(ctx context.Context, agentName string, req *Request) (*Response, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	primary := r.resolve(agentName)
	if primary == nil {
		return nil, fmt.Errorf("no provider available for agent %s", agentName)
	}

	resp, err := primary.Generate(ctx, req)
	if err == nil {
		return resp, nil
	}
	r.logger.Warn("primary provider failed, trying fallbacks",
		zap.String("agent", agentName), zap.Error(err))

	for _, fbID := range r.fallbacks[agentName] {
		fb, ok := r.providers[fbID]
		if !ok {
			continue
		}
		resp, err = fb.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		r.logger.Warn("fallback provider failed", zap.String("provider", fbID), zap.Error(err))
	}

	return nil, fmt.Errorf("all providers failed for agent %s: %w", agentName, err)
}

// Get returns a provider by ID.
func (r *Router) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

func (r *Router) resolve(agentName string) Provider {
	if pid, ok := r.bindings[agentName]; ok {
		if p, ok := r.providers[pid]; ok {
			return p
		}
	}
	if p, ok := r.providers[r.defaults]; ok {
		return p
	}
	return nil
}
