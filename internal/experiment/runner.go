package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/config"
	"github.com/nidhogg/emergence/internal/knowledge"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/provider"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

// Phase is one named segment of a run with a turn budget.
type Phase struct {
	Name  string `json:"name"`
	Turns int    `json:"turns"`
}

// DefaultPhases mirrors the reference experiment structure.
var DefaultPhases = []Phase{
	{Name: "introduction", Turns: 6},
	{Name: "mutual-understanding", Turns: 8},
	{Name: "collaborative-discussion", Turns: 10},
}

// Runner drives a simulation run: one conversational turn at a time, each
// running to completion before the next begins, so memory and trust updates
// for a turn never interleave.
type Runner struct {
	experimentID string
	roster       *agent.Roster
	arena        *memory.Arena
	matrix       *trust.Matrix
	trackers     map[string]*strategy.Tracker
	gen          *provider.Router
	integrator   *knowledge.Integrator
	keywords     config.KeywordConfig
	ctxLimit     int
	rng          *rand.Rand

	publisher EventPublisher
	notifier  Notifier
	mirror    TrustMirror
	persister Persister

	conversationLog []*TurnEvent
	turnCount       int
	mu              sync.Mutex
	logger          *zap.Logger
}

// NewRunner assembles a runner. The optional collaborators (publisher,
// notifier, mirror, persister) may be nil; every use is guarded.
func NewRunner(
	name string,
	roster *agent.Roster,
	arena *memory.Arena,
	matrix *trust.Matrix,
	trackers map[string]*strategy.Tracker,
	gen *provider.Router,
	integrator *knowledge.Integrator,
	cfg config.SimulationConfig,
	keywords config.KeywordConfig,
	rng *rand.Rand,
	logger *zap.Logger,
) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Runner{
		experimentID: fmt.Sprintf("%s_%s", name, time.Now().Format("20060102_150405")),
		roster:       roster,
		arena:        arena,
		matrix:       matrix,
		trackers:     trackers,
		gen:          gen,
		integrator:   integrator,
		keywords:     keywords,
		ctxLimit:     cfg.ContextLimit,
		rng:          rng,
		logger:       logger,
	}
}

// SetPublisher wires a turn-event publisher.
func (r *Runner) SetPublisher(p EventPublisher) { r.publisher = p }

// SetNotifier wires a progress notifier.
func (r *Runner) SetNotifier(n Notifier) { r.notifier = n }

// SetTrustMirror wires a trust graph mirror.
func (r *Runner) SetTrustMirror(m TrustMirror) { r.mirror = m }

// SetPersister wires a persistence collaborator.
func (r *Runner) SetPersister(p Persister) { r.persister = p }

// ExperimentID returns the run's unique identifier.
func (r *Runner) ExperimentID() string { return r.experimentID }

// TurnCount returns the number of completed turns.
func (r *Runner) TurnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnCount
}

// RunPhase executes one conversation phase: each turn a speaker is chosen,
// prompted with only its own remembered context, its reply routed to the
// agents it addressed, and every named recipient answers back.
func (r *Runner) RunPhase(ctx context.Context, phase Phase) error {
	r.logger.Info("phase started",
		zap.String("experiment", r.experimentID),
		zap.String("phase", phase.Name),
		zap.Int("turns", phase.Turns))

	profiles := r.roster.List()
	if len(profiles) == 0 {
		return fmt.Errorf("phase %s: no agents registered", phase.Name)
	}

	for turn := 1; turn <= phase.Turns; turn++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		speaker := profiles[r.rng.Intn(len(profiles))]
		if err := r.runTurn(ctx, phase, speaker); err != nil {
			// Generation failures degrade the turn, they never abort the phase.
			r.logger.Warn("turn failed",
				zap.String("phase", phase.Name),
				zap.String("speaker", speaker.Name),
				zap.Error(err))
		}
	}

	if r.notifier != nil {
		_ = r.notifier.Notify(ctx, fmt.Sprintf("[%s] phase %q complete (%d turns)",
			r.experimentID, phase.Name, phase.Turns))
	}
	return nil
}

// runTurn executes one speaker turn plus the response sub-turn of every
// recipient.
func (r *Runner) runTurn(ctx context.Context, phase Phase, speaker *agent.Profile) error {
	mem, _ := r.arena.Get(speaker.Name)
	others := r.roster.Others(speaker.Name)

	prompt := fmt.Sprintf(
		"%s\n\nIt is your turn. Either address one of the other agents (%s) directly by name, "+
			"or state a general observation to the group.\n\nAct on your %s personality and your %s strategy.\n\nCurrent phase: %s",
		r.memoryContext(mem), joinNames(others), speaker.Personality, speaker.Strategy, phase.Name)

	content, err := r.generate(ctx, speaker, prompt)
	if err != nil {
		return err
	}

	recipients := parseRecipients(content, speaker.Name, r.roster.Names())
	r.deliver(ctx, phase, speaker, content, recipients)

	// Every addressed agent replies directly to the speaker.
	for _, name := range recipients {
		recipient, ok := r.roster.Get(name)
		if !ok {
			continue
		}
		rmem, _ := r.arena.Get(name)
		replyPrompt := fmt.Sprintf(
			"%s\n\n%s is addressing you:\n%q\n\nRespond according to your %s personality and your %s strategy.",
			r.memoryContext(rmem), speaker.Name, content, recipient.Personality, recipient.Strategy)

		reply, err := r.generate(ctx, recipient, replyPrompt)
		if err != nil {
			r.logger.Warn("response sub-turn failed",
				zap.String("agent", name), zap.Error(err))
			continue
		}
		r.deliver(ctx, phase, recipient, reply, []string{speaker.Name})
	}
	return nil
}

// deliver routes an utterance, records the global log entry, and applies the
// trust and strategy side effects of the directed interaction.
func (r *Runner) deliver(ctx context.Context, phase Phase, speaker *agent.Profile, content string, recipients []string) {
	_, routeErrs := r.arena.Route(speaker.Name, content, recipients)
	for _, err := range routeErrs {
		r.logger.Warn("routing degraded", zap.Error(err))
	}

	r.mu.Lock()
	r.turnCount++
	ev := &TurnEvent{
		ExperimentID: r.experimentID,
		Phase:        phase.Name,
		Turn:         r.turnCount,
		Speaker:      speaker.Name,
		Content:      content,
		Recipients:   recipients,
		Timestamp:    time.Now(),
	}
	r.conversationLog = append(r.conversationLog, ev)
	r.mu.Unlock()

	if r.publisher != nil {
		if err := r.publisher.PublishTurn(ctx, ev); err != nil {
			r.logger.Warn("turn event publish failed", zap.Error(err))
		}
	}
	if r.persister != nil {
		if err := r.persister.SaveTurn(ctx, r.experimentID, ev); err != nil {
			r.logger.Warn("turn persist failed", zap.Error(err))
		}
	}

	// Each recipient re-scores its trust in the speaker from this outcome,
	// and the speaker's tracker scores the interaction.
	outcome := r.deriveOutcome(speaker, content)
	for _, name := range recipients {
		before := r.matrix.Get(name, speaker.Name)
		after, ok := r.matrix.Update(name, speaker.Name, outcome)
		if !ok {
			continue
		}
		if r.mirror != nil {
			r.mirror.Mirror(ctx, name, speaker.Name, after)
		}
		if tracker, ok := r.trackers[speaker.Name]; ok {
			tracker.Evaluate(strategyResult(outcome, before, after))
			if mem, ok := r.arena.Get(speaker.Name); ok {
				tracker.Evolve(mem)
			}
		}
	}
	r.refreshTrustLevel(speaker)
}

// refreshTrustLevel keeps the profile's mutable trust level in sync with the
// mean trust the other agents place in it.
func (r *Runner) refreshTrustLevel(p *agent.Profile) {
	names := r.matrix.Agents()
	var sum float64
	var n int
	for _, truster := range names {
		if truster == p.Name {
			continue
		}
		sum += r.matrix.Get(truster, p.Name)
		n++
	}
	if n > 0 {
		p.TrustLevel = sum / float64(n)
	}
}

// Integrate runs an on-demand knowledge integration round over the current
// memories, independent of the turn loop.
func (r *Runner) Integrate(ctx context.Context, topic string) *knowledge.Result {
	result := r.integrator.Integrate(ctx, r.roster.List(), topic)

	if r.persister != nil {
		if err := r.persister.SaveIntegration(ctx, r.experimentID, result); err != nil {
			r.logger.Warn("integration persist failed", zap.Error(err))
		}
	}
	if r.notifier != nil {
		_ = r.notifier.Notify(ctx, fmt.Sprintf("[%s] integration on %q: emergence %.2f (%d groups, %d synergies)",
			r.experimentID, topic, result.EmergenceScore, result.Quality.GroupCount, len(result.Synergies)))
	}
	return result
}

// Persist hands the current snapshot to the persistence collaborator.
func (r *Runner) Persist(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	return r.persister.SaveSnapshot(ctx, r.Snapshot())
}

func (r *Runner) generate(ctx context.Context, p *agent.Profile, prompt string) (string, error) {
	messages := []provider.Message{{Role: "system", Content: agent.BuildInstructions(p, r.roster.Others(p.Name))}}
	if mem, ok := r.arena.Get(p.Name); ok {
		for _, pair := range mem.RoleContentPairs() {
			messages = append(messages, provider.Message{Role: pair.Role, Content: pair.Content})
		}
	}
	messages = append(messages, provider.Message{Role: "user", Content: prompt})

	resp, err := r.gen.Generate(ctx, p.Name, &provider.Request{Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (r *Runner) memoryContext(mem *memory.AgentMemory) string {
	if mem == nil {
		return memory.NoHistory
	}
	return mem.Context(r.ctxLimit)
}

func joinNames(names []string) string {
	if len(names) == 0 {
		return "nobody else"
	}
	return strings.Join(names, ", ")
}
