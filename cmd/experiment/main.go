package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/bus"
	"github.com/nidhogg/emergence/internal/config"
	"github.com/nidhogg/emergence/internal/experiment"
	"github.com/nidhogg/emergence/internal/knowledge"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/notify"
	"github.com/nidhogg/emergence/internal/provider"
	pgstore "github.com/nidhogg/emergence/internal/store"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

// Runs a full simulation from the terminal: every default phase in order,
// then a knowledge integration pass and a final snapshot on stdout.
func main() {
	var (
		cfgPath = flag.String("config", "configs/emergence.json", "path to config file")
		name    = flag.String("name", "experiment", "experiment name")
		topic   = flag.String("topic", "collaborative problem solving", "integration topic")
	)
	flag.Parse()

	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", *cfgPath), zap.Error(err))
	}

	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			Model: pc.Model, Extra: pc.Extra,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "anthropic":
			router.Register(provider.NewAnthropicProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	roster := agent.NewRoster(logger)
	arena := memory.NewArena(logger)
	for _, ac := range cfg.Agents {
		p, perr := agent.NewProfile(ac.Name, agent.Personality(ac.Personality), agent.Strategy(ac.Strategy), ac.TrustLevel, ac.CooperationTendency)
		if perr != nil {
			logger.Fatal("invalid agent config", zap.String("name", ac.Name), zap.Error(perr))
		}
		p.ProviderID = ac.ProviderID
		roster.Register(p)
		arena.Add(p.Name)
		if ac.ProviderID != "" {
			router.Bind(p.Name, ac.ProviderID)
		}
	}
	if roster.Len() == 0 {
		logger.Fatal("no agents configured")
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	matrix := trust.NewMatrix(roster.List(), logger,
		trust.WithLearningRate(cfg.Simulation.LearningRate),
		trust.WithExplorationRate(cfg.Simulation.ExplorationRate),
		trust.WithRand(rng),
	)

	trackers := make(map[string]*strategy.Tracker)
	kw := strategy.Keywords{
		Cooperation: cfg.Keywords.Cooperation,
		Competition: cfg.Keywords.Competition,
	}
	for _, p := range roster.List() {
		trackers[p.Name] = strategy.NewTracker(p, cfg.Simulation.AdaptationThreshold, kw, logger)
	}

	cues := knowledge.Cues{
		DomainTerms: cfg.Keywords.DomainTerms,
		Confidence:  cfg.Keywords.Confidence,
		Uncertainty: cfg.Keywords.Uncertainty,
	}
	extractor := knowledge.NewExtractor(router, arena, cues, cfg.Simulation.ContextLimit, logger)
	integrator := knowledge.NewIntegrator(extractor, cfg.Simulation.GroupingThreshold, cfg.Simulation.ExtractWorkers, logger)

	runner := experiment.NewRunner(*name, roster, arena, matrix, trackers, router, integrator,
		cfg.Simulation, cfg.Keywords, rng, logger)

	ctx := context.Background()

	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(ctx, "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			defer ps.Close()
			runner.SetPersister(ps)
		}
	}

	if cfg.Database.Redis.URL != "" {
		b, busErr := bus.New(cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without turn stream", zap.Error(busErr))
		} else {
			defer b.Close()
			runner.SetPublisher(b)
		}
	}

	var sinks []notify.Sink
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken != "" {
		sinks = append(sinks, notify.NewSlackSink(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, logger))
	}
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.BotToken != "" {
		ds, dErr := notify.NewDiscordSink(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger)
		if dErr != nil {
			logger.Warn("Discord unavailable", zap.Error(dErr))
		} else {
			defer ds.Close()
			sinks = append(sinks, ds)
		}
	}
	if len(sinks) > 0 {
		runner.SetNotifier(notify.NewBroadcaster(logger, sinks...))
	}

	logger.Info("experiment starting",
		zap.String("id", runner.ExperimentID()),
		zap.Int64("seed", seed),
		zap.Int("agents", roster.Len()))

	for _, phase := range experiment.DefaultPhases {
		if err := runner.RunPhase(ctx, phase); err != nil {
			logger.Fatal("phase failed", zap.String("phase", phase.Name), zap.Error(err))
		}
	}

	result := runner.Integrate(ctx, *topic)
	logger.Info("integration complete",
		zap.Float64("emergence_score", result.EmergenceScore),
		zap.Int("concept_groups", len(result.ConceptGroups)),
		zap.Int("synergies", len(result.Synergies)),
		zap.Bool("partial_failure", result.PartialFailure))

	if err := runner.Persist(ctx); err != nil {
		logger.Warn("failed to persist snapshot", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runner.Snapshot()); err != nil {
		logger.Fatal("failed to encode snapshot", zap.Error(err))
	}
}
