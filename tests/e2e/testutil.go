package e2e

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/config"
	"github.com/nidhogg/emergence/internal/experiment"
	"github.com/nidhogg/emergence/internal/knowledge"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/provider"
	pgstore "github.com/nidhogg/emergence/internal/store"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

// Suppress unused import warning for testcontainers base package.
var _ = testcontainers.GenericContainerRequest{}

// Package-level shared state — set by TestMain, used by all subtests.
var (
	testLogger   *zap.Logger
	testPGStore  *pgstore.Store
	testRedisURL string
	testNeo4jURI string
)

// startNeo4j starts a Neo4j testcontainer, returns URI + cleanup func.
func startNeo4j(ctx context.Context) (string, func(), error) {
	container, err := tcneo4j.Run(ctx, "neo4j:5-community",
		tcneo4j.WithoutAuthentication(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start neo4j: %w", err)
	}
	uri, err := container.BoltUrl(ctx)
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("neo4j bolt url: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return uri, cleanup, nil
}

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("emergence_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { container.Terminate(ctx) }
	return dsn, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		container.Terminate(ctx)
		return "", nil, fmt.Errorf("redis endpoint: %w", err)
	}
	url := "redis://" + endpoint
	cleanup := func() { container.Terminate(ctx) }
	return url, cleanup, nil
}

// cannedProvider makes runs deterministic: every utterance addresses Bob.
type cannedProvider struct{ reply string }

func (c *cannedProvider) ID() string   { return "canned" }
func (c *cannedProvider) Name() string { return "Canned" }
func (c *cannedProvider) Generate(_ context.Context, _ *provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: c.reply}, nil
}

// buildRunner wires the full simulation core with the canned provider and
// the reference three-agent roster.
func buildRunner(t *testing.T, name string) *experiment.Runner {
	t.Helper()

	router := provider.NewRouter(testLogger)
	router.Register(&cannedProvider{reply: "Bob, cooperation and trust are our best strategy."})

	roster := agent.NewRoster(testLogger)
	arena := memory.NewArena(testLogger)
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

	cfg := &config.Config{}
	cfg.Normalize()
	rng := rand.New(rand.NewSource(13))

	matrix := trust.NewMatrix(roster.List(), testLogger, trust.WithRand(rng))

	trackers := make(map[string]*strategy.Tracker)
	for _, p := range roster.List() {
		trackers[p.Name] = strategy.NewTracker(p, 0.3, strategy.Keywords{
			Cooperation: cfg.Keywords.Cooperation,
			Competition: cfg.Keywords.Competition,
		}, testLogger)
	}

	cues := knowledge.Cues{
		DomainTerms: cfg.Keywords.DomainTerms,
		Confidence:  cfg.Keywords.Confidence,
		Uncertainty: cfg.Keywords.Uncertainty,
	}
	extractor := knowledge.NewExtractor(router, arena, cues, 10, testLogger)
	integrator := knowledge.NewIntegrator(extractor, 0.5, 2, testLogger)

	return experiment.NewRunner(name, roster, arena, matrix, trackers, router, integrator,
		cfg.Simulation, cfg.Keywords, rng, testLogger)
}
