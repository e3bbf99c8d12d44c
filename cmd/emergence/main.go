package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/api"
	"github.com/nidhogg/emergence/internal/archive"
	"github.com/nidhogg/emergence/internal/bus"
	"github.com/nidhogg/emergence/internal/config"
	"github.com/nidhogg/emergence/internal/embedding"
	"github.com/nidhogg/emergence/internal/experiment"
	"github.com/nidhogg/emergence/internal/knowledge"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/notify"
	"github.com/nidhogg/emergence/internal/provider"
	pgstore "github.com/nidhogg/emergence/internal/store"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting emergence server...")

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/emergence.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Provider router
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

	// Agents: roster plus one isolated memory per agent
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

	runner := experiment.NewRunner("emergence", roster, arena, matrix, trackers, router, integrator,
		cfg.Simulation, cfg.Keywords, rng, logger)

	// PostgreSQL persistence
	var pgStore *pgstore.Store
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := pgstore.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			runner.SetPersister(ps)
		}
	}

	// Redis turn stream
	var eventBus *bus.Bus
	if cfg.Database.Redis.URL != "" {
		b, busErr := bus.New(cfg.Database.Redis.URL, logger)
		if busErr != nil {
			logger.Warn("Redis unavailable, running without turn stream", zap.Error(busErr))
		} else {
			eventBus = b
			runner.SetPublisher(b)
		}
	}

	// Neo4j trust graph mirror
	var driver neo4j.DriverWithContext
	if cfg.Database.Neo4j.URI != "" {
		d, nErr := neo4j.NewDriverWithContext(cfg.Database.Neo4j.URI,
			neo4j.BasicAuth(cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, ""))
		if nErr != nil {
			logger.Warn("Neo4j unavailable, running without trust graph", zap.Error(nErr))
		} else {
			driver = d
			graph := trust.NewGraph(d, logger)
			if sErr := graph.Seed(context.Background(), matrix); sErr != nil {
				logger.Warn("failed to seed trust graph", zap.Error(sErr))
			}
			runner.SetTrustMirror(graph)
		}
	}

	// Chat notifications
	var sinks []notify.Sink
	if cfg.Notify.Slack.Enabled && cfg.Notify.Slack.BotToken != "" {
		sinks = append(sinks, notify.NewSlackSink(cfg.Notify.Slack.BotToken, cfg.Notify.Slack.Channel, logger))
	}
	if cfg.Notify.Discord.Enabled && cfg.Notify.Discord.BotToken != "" {
		ds, dErr := notify.NewDiscordSink(cfg.Notify.Discord.BotToken, cfg.Notify.Discord.ChannelID, logger)
		if dErr != nil {
			logger.Warn("Discord unavailable", zap.Error(dErr))
		} else {
			sinks = append(sinks, ds)
		}
	}
	if len(sinks) > 0 {
		runner.SetNotifier(notify.NewBroadcaster(logger, sinks...))
	}

	// Qdrant integration archive
	var arch *archive.Archive
	if cfg.Database.Qdrant.Host != "" {
		embedder := embedding.NewClient(embedding.Config{
			Endpoint:  cfg.Embedding.Endpoint,
			Model:     cfg.Embedding.Model,
			APIKey:    cfg.Embedding.APIKey,
			Dimension: cfg.Embedding.Dimension,
		})
		a, aErr := archive.Open(archive.Config{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		}, embedder, logger)
		if aErr != nil {
			logger.Warn("Qdrant unavailable, running without archive", zap.Error(aErr))
		} else if iErr := a.Init(context.Background()); iErr != nil {
			logger.Warn("archive init failed, running without archive", zap.Error(iErr))
			a.Close()
		} else {
			arch = a
		}
	}

	handler := api.NewHandler(roster, arena, matrix, runner, arch, cfg.Simulation.ClusterThreshold, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("emergence listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down emergence...")
	ctx := context.Background()
	srv.Shutdown(ctx)
	if eventBus != nil {
		eventBus.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
	if driver != nil {
		driver.Close(ctx)
	}
	if arch != nil {
		arch.Close()
	}
}
