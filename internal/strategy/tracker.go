package strategy

import (
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/memory"
)

// Result carries the signals one interaction produced for an agent.
// All components are in [0,1].
type Result struct {
	CooperationSuccess float64 `json:"cooperation_success"`
	CompetitionSuccess float64 `json:"competition_success"`
	TrustGained        float64 `json:"trust_gained"`
}

// BehaviorProfile summarizes how an agent's partners have behaved, derived
// from keyword rates over the messages the agent received.
type BehaviorProfile struct {
	CooperationRate  float64 `json:"cooperation_rate"`
	CompetitionRate  float64 `json:"competition_rate"`
	Unpredictability float64 `json:"unpredictability"`
	Observed         int     `json:"observed"`
}

// Keywords are the word lists the tracker matches against received messages.
type Keywords struct {
	Cooperation []string
	Competition []string
}

// Tracker is the per-agent performance state machine: it scores each
// interaction under the agent's current strategy and switches strategy on a
// sustained performance dip. There is no terminal state.
type Tracker struct {
	profile   *agent.Profile
	scores    []float64
	threshold float64 // adaptation threshold, reference 0.3
	keywords  Keywords
	logger    *zap.Logger
}

// NewTracker creates a tracker for the given profile.
func NewTracker(profile *agent.Profile, threshold float64, kw Keywords, logger *zap.Logger) *Tracker {
	if threshold == 0 {
		threshold = 0.3
	}
	return &Tracker{
		profile:   profile,
		threshold: threshold,
		keywords:  kw,
		logger:    logger,
	}
}

// Profile returns the tracked agent profile.
func (t *Tracker) Profile() *agent.Profile { return t.profile }

// Scores returns a copy of the score history.
func (t *Tracker) Scores() []float64 {
	out := make([]float64, len(t.scores))
	copy(out, t.scores)
	return out
}

// Evaluate scores an interaction under the current strategy's weighting and
// appends it to the history.
func (t *Tracker) Evaluate(r Result) float64 {
	var score float64
	switch t.profile.Strategy {
	case agent.StrategyAlwaysCooperate:
		score = 0.7*r.CooperationSuccess + 0.3*r.TrustGained
	case agent.StrategyAdaptive:
		// Competitive weighting: adapts toward whatever wins.
		score = 0.8*r.CompetitionSuccess + 0.2*r.CooperationSuccess
	case agent.StrategyTitForTat:
		score = 0.5*(r.CooperationSuccess+r.CompetitionSuccess)/2 + 0.3*r.TrustGained
	default:
		score = (r.CooperationSuccess + r.CompetitionSuccess + r.TrustGained) / 3
	}
	t.scores = append(t.scores, score)
	return score
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// ShouldAdapt reports whether performance has dipped enough to switch
// strategy: at least 3 scores, and the last 3 averaging more than the
// adaptation threshold below the all-time mean. A lagging trigger on
// purpose — one bad round never causes a switch.
func (t *Tracker) ShouldAdapt() bool {
	if len(t.scores) < 3 {
		return false
	}
	recent := mean(t.scores[len(t.scores)-3:])
	overall := mean(t.scores)
	return recent < overall-t.threshold
}

// AnalyzePartners derives the partner-behavior profile from the agent's own
// memory: keyword occurrence rates over received messages only. Zero
// observed interactions yields a fully neutral profile.
func (t *Tracker) AnalyzePartners(mem *memory.AgentMemory) BehaviorProfile {
	var coop, comp, received int
	for _, msg := range mem.History() {
		if msg.Role != memory.RolePartner {
			continue
		}
		received++
		lower := strings.ToLower(msg.Content)
		for _, w := range t.keywords.Cooperation {
			if strings.Contains(lower, w) {
				coop++
				break
			}
		}
		for _, w := range t.keywords.Competition {
			if strings.Contains(lower, w) {
				comp++
				break
			}
		}
	}

	if received == 0 {
		// Nothing observed: fully neutral, including unpredictability.
		return BehaviorProfile{CooperationRate: 0.5, CompetitionRate: 0.5, Unpredictability: 0.5}
	}

	p := BehaviorProfile{
		CooperationRate: float64(coop) / float64(received),
		CompetitionRate: float64(comp) / float64(received),
		Observed:        received,
	}
	diff := p.CooperationRate - p.CompetitionRate
	if diff < 0 {
		diff = -diff
	}
	p.Unpredictability = 1 - diff
	return p
}

// Evolve switches the agent's strategy when ShouldAdapt fires, picking the
// counter to the observed partner behavior by fixed priority. When not
// triggered it returns the current strategy unchanged.
func (t *Tracker) Evolve(mem *memory.AgentMemory) agent.Strategy {
	if !t.ShouldAdapt() {
		return t.profile.Strategy
	}

	p := t.AnalyzePartners(mem)
	var next agent.Strategy
	switch {
	case p.CooperationRate > 0.7:
		next = agent.StrategyAlwaysCooperate
	case p.CompetitionRate > 0.7:
		next = agent.StrategyAdaptive
	case p.Unpredictability > 0.5:
		next = agent.StrategyTitForTat
	default:
		next = agent.StrategyGenerousTitForTat
	}

	if next != t.profile.Strategy {
		t.logger.Info("strategy evolved",
			zap.String("agent", t.profile.Name),
			zap.String("from", string(t.profile.Strategy)),
			zap.String("to", string(next)),
			zap.Float64("cooperation_rate", p.CooperationRate),
			zap.Float64("competition_rate", p.CompetitionRate),
			zap.Float64("unpredictability", p.Unpredictability))
	}
	t.profile.SetStrategy(next)
	return next
}
