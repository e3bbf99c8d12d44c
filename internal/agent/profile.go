package agent

import (
	"fmt"
	"time"
)

// Personality categorizes an agent's behavioral disposition.
type Personality string

const (
	PersonalityCooperative Personality = "cooperative"
	PersonalityCompetitive Personality = "competitive"
	PersonalityAnalytical  Personality = "analytical"
	PersonalityCreative    Personality = "creative"
	PersonalityDiplomatic  Personality = "diplomatic"
)

// Strategy is an agent's game-theoretic policy.
type Strategy string

const (
	StrategyTitForTat         Strategy = "tit_for_tat"
	StrategyAlwaysCooperate   Strategy = "always_cooperate"
	StrategyAdaptive          Strategy = "adaptive"
	StrategyGenerousTitForTat Strategy = "generous_tit_for_tat"
	StrategyRandom            Strategy = "random"
)

// personalityDesc describes each personality for prompt construction.
var personalityDesc = map[Personality]string{
	PersonalityCooperative: "cooperative and values harmony with others",
	PersonalityCompetitive: "competitive and pursues its own interests",
	PersonalityAnalytical:  "logical and values analytical thinking",
	PersonalityCreative:    "creative and generates novel ideas",
	PersonalityDiplomatic:  "diplomatic and values mediation",
}

// strategyDesc describes each strategy for prompt construction.
var strategyDesc = map[Strategy]string{
	StrategyTitForTat:         "a reciprocal strategy that mirrors the partner's behavior",
	StrategyAlwaysCooperate:   "a peaceful strategy that always chooses cooperation",
	StrategyAdaptive:          "a flexible strategy that shifts with the situation",
	StrategyGenerousTitForTat: "a reciprocal strategy that occasionally shows forgiveness",
	StrategyRandom:            "an unpredictable strategy of random behavior",
}

// ValidPersonality reports whether s names a known personality.
func ValidPersonality(s string) bool {
	_, ok := personalityDesc[Personality(s)]
	return ok
}

// ValidStrategy reports whether s names a known strategy.
func ValidStrategy(s string) bool {
	_, ok := strategyDesc[Strategy(s)]
	return ok
}

// Describe returns the behavioral description for a strategy.
func (s Strategy) Describe() string { return strategyDesc[s] }

// Describe returns the behavioral description for a personality.
func (p Personality) Describe() string { return personalityDesc[p] }

// Profile is the identity and tunable disposition of one simulated agent.
// Name, Personality and the two tendencies are fixed for the life of a run;
// Strategy and TrustLevel evolve.
type Profile struct {
	Name                string      `json:"name"`
	Personality         Personality `json:"personality"`
	Strategy            Strategy    `json:"strategy"`
	TrustLevel          float64     `json:"trust_level"`          // 0-1
	CooperationTendency float64     `json:"cooperation_tendency"` // 0-1
	Behavior            string      `json:"behavior"`             // strategy-dependent description
	ProviderID          string      `json:"provider_id,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// NewProfile validates the enum fields and returns a profile with the
// behavior description populated.
func NewProfile(name string, personality Personality, strategy Strategy, trustLevel, cooperation float64) (*Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}
	if !ValidPersonality(string(personality)) {
		return nil, fmt.Errorf("unknown personality %q", personality)
	}
	if !ValidStrategy(string(strategy)) {
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	now := time.Now()
	return &Profile{
		Name:                name,
		Personality:         personality,
		Strategy:            strategy,
		TrustLevel:          trustLevel,
		CooperationTendency: cooperation,
		Behavior:            strategy.Describe(),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

// SetStrategy switches the agent's policy and regenerates the behavior
// description.
func (p *Profile) SetStrategy(s Strategy) {
	p.Strategy = s
	p.Behavior = s.Describe()
	p.UpdatedAt = time.Now()
}
