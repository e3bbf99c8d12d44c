package experiment

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/config"
	"github.com/nidhogg/emergence/internal/knowledge"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/provider"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

// scriptedProvider addresses Bob on every call so routing is predictable.
type scriptedProvider struct {
	reply string
	calls int
}

func (s *scriptedProvider) ID() string   { return "scripted" }
func (s *scriptedProvider) Name() string { return "Scripted" }
func (s *scriptedProvider) Generate(_ context.Context, _ *provider.Request) (*provider.Response, error) {
	s.calls++
	return &provider.Response{Content: s.reply}, nil
}

type recordingPersister struct {
	turns        int
	integrations int
	snapshots    int
}

func (p *recordingPersister) SaveTurn(_ context.Context, _ string, _ *TurnEvent) error {
	p.turns++
	return nil
}
func (p *recordingPersister) SaveIntegration(_ context.Context, _ string, _ *knowledge.Result) error {
	p.integrations++
	return nil
}
func (p *recordingPersister) SaveSnapshot(_ context.Context, _ *Snapshot) error {
	p.snapshots++
	return nil
}

func testSimConfig() config.SimulationConfig {
	return config.SimulationConfig{
		LearningRate:        0.1,
		AdaptationThreshold: 0.3,
		GroupingThreshold:   0.5,
		ExplorationRate:     0.2,
		ClusterThreshold:    0.7,
		ContextLimit:        10,
		ExtractWorkers:      2,
	}
}

func testKeywords() config.KeywordConfig {
	cfg := &config.Config{}
	cfg.Normalize()
	return cfg.Keywords
}

func newTestRunner(t *testing.T, fp provider.Provider) (*Runner, *agent.Roster, *memory.Arena, *trust.Matrix) {
	t.Helper()
	logger := zap.NewNop()

	router := provider.NewRouter(logger)
	router.Register(fp)

	roster := agent.NewRoster(logger)
	arena := memory.NewArena(logger)
	specs := []struct {
		name        string
		personality agent.Personality
		strategy    agent.Strategy
		trust, coop float64
	}{
		{"Alice", agent.PersonalityCooperative, agent.StrategyGenerousTitForTat, 0.8, 0.9},
		{"Bob", agent.PersonalityCompetitive, agent.StrategyAdaptive, 0.4, 0.3},
		{"Charlie", agent.PersonalityCreative, agent.StrategyRandom, 0.6, 0.6},
	}
	for _, s := range specs {
		p, err := agent.NewProfile(s.name, s.personality, s.strategy, s.trust, s.coop)
		if err != nil {
			t.Fatal(err)
		}
		roster.Register(p)
		arena.Add(p.Name)
	}

	rng := rand.New(rand.NewSource(7))
	matrix := trust.NewMatrix(roster.List(), logger, trust.WithRand(rng))

	kw := testKeywords()
	trackers := make(map[string]*strategy.Tracker)
	for _, p := range roster.List() {
		trackers[p.Name] = strategy.NewTracker(p, 0.3, strategy.Keywords{
			Cooperation: kw.Cooperation,
			Competition: kw.Competition,
		}, logger)
	}

	cues := knowledge.Cues{
		DomainTerms: kw.DomainTerms,
		Confidence:  kw.Confidence,
		Uncertainty: kw.Uncertainty,
	}
	extractor := knowledge.NewExtractor(router, arena, cues, 10, logger)
	integrator := knowledge.NewIntegrator(extractor, 0.5, 2, logger)

	runner := NewRunner("test", roster, arena, matrix, trackers, router, integrator,
		testSimConfig(), kw, rng, logger)
	return runner, roster, arena, matrix
}

func TestParseRecipients(t *testing.T) {
	names := []string{"Alice", "Bob", "Charlie"}

	got := parseRecipients("Bob, what do you and Charlie think?", "Alice", names)
	if len(got) != 2 || got[1] != "Charlie" {
		t.Errorf("got %v, want [Bob Charlie]", got)
	}

	// The speaker mentioning itself is never a recipient.
	got = parseRecipients("Alice thinks this is fine.", "Alice", names)
	if len(got) != 0 {
		t.Errorf("got %v, want none", got)
	}
}

func TestDeriveOutcome(t *testing.T) {
	fp := &scriptedProvider{}
	r, roster, _, _ := newTestRunner(t, fp)
	alice, _ := roster.Get("Alice")

	out := r.deriveOutcome(alice, "let us cooperate and share, not compete")
	// Two cooperative hits against one competitive.
	if math.Abs(out.Cooperation-2.0/3.0) > 1e-9 {
		t.Errorf("cooperation: got %v, want 2/3", out.Cooperation)
	}
	if out.PromiseKept != 0.9 {
		t.Errorf("promise kept: got %v, want Alice's tendency 0.9", out.PromiseKept)
	}
	if out.InfoQuality <= 0 || out.InfoQuality > 1 {
		t.Errorf("info quality out of range: %v", out.InfoQuality)
	}

	// No cue hits at all: neutral cooperation.
	out = r.deriveOutcome(alice, "nice weather")
	if out.Cooperation != 0.5 {
		t.Errorf("got %v, want neutral 0.5", out.Cooperation)
	}
}

func TestStrategyResultBounds(t *testing.T) {
	res := strategyResult(trust.Outcome{Cooperation: 0.75}, 0.5, 0.55)
	if math.Abs(res.TrustGained-0.75) > 1e-9 {
		t.Errorf("trust gained: got %v, want 0.75", res.TrustGained)
	}
	if math.Abs(res.CompetitionSuccess-0.25) > 1e-9 {
		t.Errorf("competition success: got %v, want 0.25", res.CompetitionSuccess)
	}

	res = strategyResult(trust.Outcome{}, 0.9, 0.2)
	if res.TrustGained != 0 {
		t.Errorf("trust gained should clamp at 0, got %v", res.TrustGained)
	}
}

func TestRunPhaseRoutesAndUpdatesTrust(t *testing.T) {
	fp := &scriptedProvider{reply: "Bob, I want to cooperate with you for mutual benefit."}
	r, _, arena, matrix := newTestRunner(t, fp)
	persister := &recordingPersister{}
	r.SetPersister(persister)

	phase := Phase{Name: "introduction", Turns: 3}
	if err := r.RunPhase(context.Background(), phase); err != nil {
		t.Fatal(err)
	}

	if r.TurnCount() == 0 {
		t.Fatal("no turns recorded")
	}
	if persister.turns != r.TurnCount() {
		t.Errorf("persisted %d turns, recorded %d", persister.turns, r.TurnCount())
	}

	// Every utterance names Bob, so unless Bob himself spoke every turn,
	// Bob received messages and his trust in the speakers moved.
	bob, _ := arena.Get("Bob")
	if bob.Len() == 0 {
		t.Fatal("Bob's memory is empty after the phase")
	}
	moved := false
	for _, other := range []string{"Alice", "Charlie"} {
		if len(matrix.Log("Bob", other)) > 0 {
			moved = true
		}
	}
	if !moved && bob.HasPartner("Alice") {
		t.Error("Bob received from Alice but his trust log is empty")
	}
}

func TestRunPhaseIsolation(t *testing.T) {
	fp := &scriptedProvider{reply: "Bob, a private word about our strategy."}
	r, _, arena, _ := newTestRunner(t, fp)

	if err := r.RunPhase(context.Background(), Phase{Name: "introduction", Turns: 4}); err != nil {
		t.Fatal(err)
	}

	// No delivery ever names Charlie, so Charlie's memory can hold only his
	// own utterances and replies addressed to him as a past speaker.
	charlie, _ := arena.Get("Charlie")
	for _, msg := range charlie.History() {
		if msg.Role == memory.RolePartner && !strings.HasPrefix(msg.Content, "[") {
			t.Errorf("received message without sender prefix: %q", msg.Content)
		}
		if msg.Role == memory.RolePartner && strings.Contains(msg.Content, "[Ghost]") {
			t.Errorf("impossible sender: %q", msg.Content)
		}
	}
}

func TestIntegratePersistsAndRecordsHistory(t *testing.T) {
	fp := &scriptedProvider{reply: "My strategy is to build trust through cooperation."}
	r, _, _, _ := newTestRunner(t, fp)
	persister := &recordingPersister{}
	r.SetPersister(persister)

	result := r.Integrate(context.Background(), "collaboration")
	if result == nil {
		t.Fatal("nil integration result")
	}
	if persister.integrations != 1 {
		t.Errorf("persisted %d integrations, want 1", persister.integrations)
	}

	if err := r.Persist(context.Background()); err != nil {
		t.Fatal(err)
	}
	if persister.snapshots != 1 {
		t.Errorf("persisted %d snapshots, want 1", persister.snapshots)
	}
}

func TestSnapshotCarriesRunState(t *testing.T) {
	fp := &scriptedProvider{reply: "Bob, let us share what we know."}
	r, _, _, _ := newTestRunner(t, fp)

	if err := r.RunPhase(context.Background(), Phase{Name: "introduction", Turns: 2}); err != nil {
		t.Fatal(err)
	}
	r.Integrate(context.Background(), "collaboration")

	snap := r.Snapshot()
	if snap.ExperimentID != r.ExperimentID() {
		t.Errorf("got %q, want %q", snap.ExperimentID, r.ExperimentID())
	}
	if len(snap.Agents) != 3 {
		t.Errorf("got %d agents, want 3", len(snap.Agents))
	}
	if len(snap.GlobalConversationLog) != r.TurnCount() {
		t.Errorf("log has %d events, want %d", len(snap.GlobalConversationLog), r.TurnCount())
	}
	if len(snap.IntegrationHistory) != 1 {
		t.Errorf("got %d integrations, want 1", len(snap.IntegrationHistory))
	}
	if len(snap.TrustMatrix) != 3 {
		t.Errorf("trust matrix has %d rows, want 3", len(snap.TrustMatrix))
	}
}

func TestJoinNames(t *testing.T) {
	if got := joinNames(nil); got != "nobody else" {
		t.Errorf("got %q, want %q", got, "nobody else")
	}
	if got := joinNames([]string{"Alice", "Bob"}); got != "Alice, Bob" {
		t.Errorf("got %q, want %q", got, "Alice, Bob")
	}
}
