package knowledge

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
)

// ConceptGroup is a cluster of lexically similar concept sentences.
type ConceptGroup struct {
	Representative string   `json:"representative"`
	Members        []string `json:"members"`
	Contributors   []string `json:"contributors"`
}

// Synergy is a detected complementary pairing of contributor dispositions.
type Synergy struct {
	Pair   [2]string `json:"pair"`
	Agents []string  `json:"agents"`
}

// QualityMetrics breaks the emergence score into its components.
type QualityMetrics struct {
	Diversity             float64 `json:"diversity"`
	Novelty               float64 `json:"novelty"`
	IntegrationEfficiency float64 `json:"integration_efficiency"`
	TotalConcepts         int     `json:"total_concepts"`
	GroupCount            int     `json:"group_count"`
	FailedExtracts        int     `json:"failed_extracts"`
}

// Result is one integration round's collective artifact. Read-only once
// produced; rounds append to the integrator's history and never mutate
// prior results.
type Result struct {
	ID             string         `json:"id"`
	Topic          string         `json:"topic"`
	Timestamp      time.Time      `json:"timestamp"`
	Extracts       []*Extract     `json:"extracts"`
	ConceptGroups  []ConceptGroup `json:"concept_groups"`
	Synergies      []Synergy      `json:"synergies"`
	EmergenceScore float64        `json:"emergence_score"`
	Quality        QualityMetrics `json:"quality_metrics"`
	PartialFailure bool           `json:"partial_failure"`
}

// synergyPairs are the fixed disposition combinations considered
// complementary. A label matches an agent's personality or strategy.
var synergyPairs = [][2]string{
	{"cooperative", "creative"},
	{"competitive", "analytical"},
	{"diplomatic", "adaptive"},
}

// Integrator merges per-agent extracts into a collective artifact and
// scores its emergence.
type Integrator struct {
	extractor *Extractor
	threshold float64 // Jaccard grouping threshold, reference 0.5
	workers   int
	history   []*Result
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewIntegrator creates an integrator with a bounded extraction pool.
func NewIntegrator(extractor *Extractor, threshold float64, workers int, logger *zap.Logger) *Integrator {
	if threshold == 0 {
		threshold = 0.5
	}
	if workers <= 0 {
		workers = 4
	}
	return &Integrator{
		extractor: extractor,
		threshold: threshold,
		workers:   workers,
		logger:    logger,
	}
}

// Integrate runs an extraction round over all participants and merges the
// results. Extracts for independent agents run concurrently through a
// semaphore pool; the merge waits for every extract (or its reported
// failure) before grouping — a fan-out/fan-in barrier.
func (in *Integrator) Integrate(ctx context.Context, participants []*agent.Profile, topic string) *Result {
	extracts := make([]*Extract, len(participants))
	sem := make(chan struct{}, in.workers)
	var wg sync.WaitGroup

	for i, p := range participants {
		wg.Add(1)
		go func(i int, p *agent.Profile) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			extracts[i] = in.extractor.Extract(ctx, p, topic)
		}(i, p)
	}
	wg.Wait()

	result := in.merge(topic, extracts)

	in.mu.Lock()
	in.history = append(in.history, result)
	in.mu.Unlock()

	in.logger.Info("integration round complete",
		zap.String("topic", topic),
		zap.Int("agents", len(participants)),
		zap.Int("groups", result.Quality.GroupCount),
		zap.Int("synergies", len(result.Synergies)),
		zap.Float64("emergence", result.EmergenceScore),
		zap.Bool("partial_failure", result.PartialFailure))
	return result
}

// History returns the integration history, oldest first.
func (in *Integrator) History() []*Result {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]*Result, len(in.history))
	copy(out, in.history)
	return out
}

func (in *Integrator) merge(topic string, extracts []*Extract) *Result {
	result := &Result{
		ID:        uuid.New().String(),
		Topic:     topic,
		Timestamp: time.Now(),
		Extracts:  extracts,
	}

	personalities := make(map[agent.Personality]struct{})
	totalConcepts := 0
	for _, ex := range extracts {
		personalities[ex.Personality] = struct{}{}
		totalConcepts += len(ex.Concepts)
		if ex.Degraded {
			result.Quality.FailedExtracts++
		}
	}
	result.PartialFailure = result.Quality.FailedExtracts > 0

	result.ConceptGroups = in.groupConcepts(extracts)
	result.Synergies = detectSynergies(extracts)

	n := float64(len(extracts))
	q := &result.Quality
	q.TotalConcepts = totalConcepts
	q.GroupCount = len(result.ConceptGroups)
	if n > 0 {
		q.Diversity = float64(len(personalities)) / n
		q.Novelty = clamp01(float64(len(result.Synergies)) / n)
	}
	if totalConcepts > 0 {
		q.IntegrationEfficiency = float64(q.GroupCount) / float64(totalConcepts)
	}
	result.EmergenceScore = clamp01(0.4*q.Diversity + 0.4*q.Novelty + 0.2*q.IntegrationEfficiency)
	return result
}

// groupConcepts clusters concept sentences greedily: a concept joins the
// first group whose representative it overlaps at or above the Jaccard
// threshold, otherwise it opens a new group.
func (in *Integrator) groupConcepts(extracts []*Extract) []ConceptGroup {
	var groups []ConceptGroup
	for _, ex := range extracts {
		for _, concept := range ex.Concepts {
			placed := false
			for i := range groups {
				if jaccard(wordSet(groups[i].Representative), wordSet(concept)) >= in.threshold {
					groups[i].Members = append(groups[i].Members, concept)
					groups[i].Contributors = appendUnique(groups[i].Contributors, ex.AgentName)
					placed = true
					break
				}
			}
			if !placed {
				groups = append(groups, ConceptGroup{
					Representative: concept,
					Members:        []string{concept},
					Contributors:   []string{ex.AgentName},
				})
			}
		}
	}
	return groups
}

// detectSynergies finds the fixed complementary pairings with at least one
// matching agent on each side.
func detectSynergies(extracts []*Extract) []Synergy {
	var synergies []Synergy
	for _, pair := range synergyPairs {
		var left, right []string
		for _, ex := range extracts {
			if matchesDisposition(ex, pair[0]) {
				left = append(left, ex.AgentName)
			}
			if matchesDisposition(ex, pair[1]) {
				right = append(right, ex.AgentName)
			}
		}
		agents := unionDistinct(left, right)
		// A synergy needs at least two agents spanning both sides.
		if len(left) > 0 && len(right) > 0 && len(agents) >= 2 {
			synergies = append(synergies, Synergy{Pair: pair, Agents: agents})
		}
	}
	return synergies
}

// matchesDisposition matches a synergy label against the extract's
// personality or strategy, so strategy labels like "adaptive" pair with
// personality labels.
func matchesDisposition(ex *Extract, label string) bool {
	return string(ex.Personality) == label || string(ex.Strategy) == label
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()[]")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func unionDistinct(a, b []string) []string {
	var out []string
	for _, v := range a {
		out = appendUnique(out, v)
	}
	for _, v := range b {
		out = appendUnique(out, v)
	}
	return out
}
