package trust

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
)

// Outcome scores one directed interaction. All components are in [0,1].
type Outcome struct {
	Cooperation float64 `json:"cooperation"`
	PromiseKept float64 `json:"promise_kept"`
	InfoQuality float64 `json:"info_quality"`
}

// InteractionRecord is one applied trust update, kept per ordered pair.
type InteractionRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Outcome   Outcome   `json:"outcome"`
	Before    float64   `json:"trust_before"`
	After     float64   `json:"trust_after"`
}

type pairKey struct {
	truster, trustee string
}

type pairEntry struct {
	mu    sync.Mutex
	value float64
	log   []InteractionRecord
}

// NeutralTrust is the default returned for pairs the matrix does not know.
const NeutralTrust = 0.5

// Matrix holds directed trust scores for every ordered pair of distinct
// agents. The pair set is fixed at Initialize; Update is the only mutator
// and serializes per pair, so concurrent round drivers never lose updates.
type Matrix struct {
	pairs           map[pairKey]*pairEntry
	order           []string // agent order at initialization, for tie-breaks
	learningRate    float64
	explorationRate float64
	rng             *rand.Rand
	rngMu           sync.Mutex
	logger          *zap.Logger
}

// Option tunes matrix construction.
type Option func(*Matrix)

// WithLearningRate overrides the 0.1 reference learning rate.
func WithLearningRate(lr float64) Option {
	return func(m *Matrix) { m.learningRate = lr }
}

// WithExplorationRate overrides the 0.2 reference exploration rate.
func WithExplorationRate(rate float64) Option {
	return func(m *Matrix) { m.explorationRate = rate }
}

// WithRand injects a seeded random source so partner recommendation is
// reproducible in tests.
func WithRand(rng *rand.Rand) Option {
	return func(m *Matrix) { m.rng = rng }
}

// NewMatrix builds the complete matrix: one entry per ordered pair of
// distinct agents, seeded from each truster's own trust level.
func NewMatrix(profiles []*agent.Profile, logger *zap.Logger, opts ...Option) *Matrix {
	m := &Matrix{
		pairs:           make(map[pairKey]*pairEntry),
		learningRate:    0.1,
		explorationRate: 0.2,
		logger:          logger,
	}
	for _, o := range opts {
		o(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for _, truster := range profiles {
		m.order = append(m.order, truster.Name)
		for _, trustee := range profiles {
			if truster.Name == trustee.Name {
				continue
			}
			m.pairs[pairKey{truster.Name, trustee.Name}] = &pairEntry{value: truster.TrustLevel}
		}
	}
	logger.Info("trust matrix initialized",
		zap.Int("agents", len(profiles)),
		zap.Int("pairs", len(m.pairs)))
	return m
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

// Update applies one interaction outcome to the (truster, trustee) score.
// delta weighs cooperation and promise keeping at 0.4 each and information
// quality at 0.2, centered on 0.5 so a mediocre interaction erodes trust.
func (m *Matrix) Update(truster, trustee string, out Outcome) (float64, bool) {
	entry, ok := m.pairs[pairKey{truster, trustee}]
	if !ok {
		m.logger.Warn("trust update for unknown pair dropped",
			zap.String("truster", truster),
			zap.String("trustee", trustee))
		return NeutralTrust, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	delta := 0.4*out.Cooperation + 0.4*out.PromiseKept + 0.2*out.InfoQuality - 0.5
	before := entry.value
	entry.value = clamp01(before + m.learningRate*delta)
	entry.log = append(entry.log, InteractionRecord{
		Timestamp: time.Now(),
		Outcome:   out,
		Before:    before,
		After:     entry.value,
	})

	m.logger.Debug("trust updated",
		zap.String("truster", truster),
		zap.String("trustee", trustee),
		zap.Float64("before", before),
		zap.Float64("after", entry.value))
	return entry.value, true
}

// Get returns the current trust score, or the neutral default for pairs the
// matrix does not know. Never fails.
func (m *Matrix) Get(truster, trustee string) float64 {
	entry, ok := m.pairs[pairKey{truster, trustee}]
	if !ok {
		return NeutralTrust
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.value
}

// Log returns a copy of the interaction log for a pair.
func (m *Matrix) Log(truster, trustee string) []InteractionRecord {
	entry, ok := m.pairs[pairKey{truster, trustee}]
	if !ok {
		return nil
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := make([]InteractionRecord, len(entry.log))
	copy(out, entry.log)
	return out
}

// Agents returns the agent names in initialization order.
func (m *Matrix) Agents() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// RecommendPartner picks a partner for the agent: with probability 0.8 the
// highest-trust eligible agent (ties broken by initialization order), with
// probability 0.2 a uniformly random eligible agent. Returns "" when nobody
// is eligible. The split is a fixed exploration/exploitation parameter.
func (m *Matrix) RecommendPartner(agentName string, exclude map[string]bool) string {
	var eligible []string
	for _, name := range m.order {
		if name == agentName || exclude[name] {
			continue
		}
		if _, ok := m.pairs[pairKey{agentName, name}]; ok {
			eligible = append(eligible, name)
		}
	}
	if len(eligible) == 0 {
		return ""
	}

	m.rngMu.Lock()
	roll := m.rng.Float64()
	pick := m.rng.Intn(len(eligible))
	m.rngMu.Unlock()

	if roll < m.explorationRate {
		return eligible[pick]
	}

	best := eligible[0]
	bestScore := m.Get(agentName, best)
	for _, name := range eligible[1:] {
		if s := m.Get(agentName, name); s > bestScore {
			best, bestScore = name, s
		}
	}
	return best
}

// Clusters returns, for each truster, the trustees it trusts at or above the
// threshold. Trusters with no such trustee are omitted.
func (m *Matrix) Clusters(threshold float64) map[string][]string {
	out := make(map[string][]string)
	for _, truster := range m.order {
		var members []string
		for _, trustee := range m.order {
			if truster == trustee {
				continue
			}
			if m.Get(truster, trustee) >= threshold {
				members = append(members, trustee)
			}
		}
		if len(members) > 0 {
			sort.Strings(members)
			out[truster] = members
		}
	}
	return out
}

// Snapshot returns the full matrix as nested maps for serialization.
func (m *Matrix) Snapshot() map[string]map[string]float64 {
	out := make(map[string]map[string]float64)
	for _, truster := range m.order {
		row := make(map[string]float64)
		for _, trustee := range m.order {
			if truster == trustee {
				continue
			}
			row[trustee] = m.Get(truster, trustee)
		}
		out[truster] = row
	}
	return out
}
