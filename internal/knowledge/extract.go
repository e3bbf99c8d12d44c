package knowledge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/provider"
)

// Extract is one agent's contribution to an integration round. Ephemeral:
// produced per round, never persisted across rounds.
type Extract struct {
	AgentName   string            `json:"agent_name"`
	Personality agent.Personality `json:"personality"`
	Strategy    agent.Strategy    `json:"strategy"`
	RawText     string            `json:"raw_text"`
	Concepts    []string          `json:"concepts"`
	Confidence  float64           `json:"confidence"`
	Degraded    bool              `json:"degraded"` // generation failed, baseline-only extract
}

// Cues are the word lists driving concept and confidence detection.
type Cues struct {
	DomainTerms []string
	Confidence  []string
	Uncertainty []string
}

// Extractor produces knowledge extracts by prompting the generation
// capability with an agent's private context.
type Extractor struct {
	gen      *provider.Router
	arena    *memory.Arena
	cues     Cues
	ctxLimit int
	logger   *zap.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(gen *provider.Router, arena *memory.Arena, cues Cues, ctxLimit int, logger *zap.Logger) *Extractor {
	if ctxLimit == 0 {
		ctxLimit = 10
	}
	return &Extractor{gen: gen, arena: arena, cues: cues, ctxLimit: ctxLimit, logger: logger}
}

// Extract asks the agent to articulate its knowledge on a topic and parses
// the reply. A failed or empty generation never propagates: the agent
// contributes a degraded extract at its baseline confidence.
func (e *Extractor) Extract(ctx context.Context, p *agent.Profile, topic string) *Extract {
	ex := &Extract{
		AgentName:   p.Name,
		Personality: p.Personality,
		Strategy:    p.Strategy,
		Confidence:  clamp01(p.TrustLevel),
	}

	mem, ok := e.arena.Get(p.Name)
	memCtx := memory.NoHistory
	if ok {
		memCtx = mem.Context(e.ctxLimit)
	}

	prompt := fmt.Sprintf(
		"%s\n\nTopic: %s\n\nDrawing on your %s personality, your %s strategy, and the conversations you remember, "+
			"state the key insights you hold about this topic. Be concrete and note how confident you are.",
		memCtx, topic, p.Personality, p.Strategy)

	req := &provider.Request{
		Messages: append(
			[]provider.Message{{Role: "system", Content: agent.BuildInstructions(p, nil)}},
			provider.Message{Role: "user", Content: prompt},
		),
	}

	resp, err := e.gen.Generate(ctx, p.Name, req)
	if err != nil || resp.Content == "" {
		ex.Degraded = true
		e.logger.Warn("extract degraded",
			zap.String("agent", p.Name),
			zap.String("topic", topic),
			zap.Error(err))
		return ex
	}

	ex.RawText = resp.Content
	ex.Concepts = e.conceptSentences(resp.Content)
	ex.Confidence = e.confidence(p.TrustLevel, resp.Content)
	return ex
}

// conceptSentences returns every sentence containing a domain term.
func (e *Extractor) conceptSentences(text string) []string {
	var concepts []string
	for _, sentence := range splitSentences(text) {
		lower := strings.ToLower(sentence)
		for _, term := range e.cues.DomainTerms {
			if strings.Contains(lower, term) {
				concepts = append(concepts, sentence)
				break
			}
		}
	}
	return concepts
}

// confidence adjusts the agent's baseline trust level by 0.1 per occurrence
// of a confidence or uncertainty cue, clamped to [0,1].
func (e *Extractor) confidence(baseline float64, text string) float64 {
	lower := strings.ToLower(text)
	score := baseline
	for _, cue := range e.cues.Confidence {
		score += 0.1 * float64(strings.Count(lower, cue))
	}
	for _, cue := range e.cues.Uncertainty {
		score -= 0.1 * float64(strings.Count(lower, cue))
	}
	return clamp01(score)
}

func splitSentences(text string) []string {
	var out []string
	var sb strings.Builder
	for _, r := range text {
		sb.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if s := strings.TrimSpace(sb.String()); s != "" {
				out = append(out, s)
			}
			sb.Reset()
		}
	}
	if s := strings.TrimSpace(sb.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
