package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/emergence/internal/agent"
	"github.com/nidhogg/emergence/internal/config"
	"github.com/nidhogg/emergence/internal/experiment"
	"github.com/nidhogg/emergence/internal/knowledge"
	"github.com/nidhogg/emergence/internal/memory"
	"github.com/nidhogg/emergence/internal/provider"
	"github.com/nidhogg/emergence/internal/strategy"
	"github.com/nidhogg/emergence/internal/trust"
)

type cannedProvider struct{ reply string }

func (c *cannedProvider) ID() string   { return "canned" }
func (c *cannedProvider) Name() string { return "Canned" }
func (c *cannedProvider) Generate(_ context.Context, _ *provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: c.reply}, nil
}

// newTestHandler wires a Handler with in-memory deps only (no databases).
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()

	router := provider.NewRouter(logger)
	router.Register(&cannedProvider{reply: "Bob, cooperation builds trust."})

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

	rng := rand.New(rand.NewSource(11))
	matrix := trust.NewMatrix(roster.List(), logger, trust.WithRand(rng))

	cfg := &config.Config{}
	cfg.Normalize()
	trackers := make(map[string]*strategy.Tracker)
	for _, p := range roster.List() {
		trackers[p.Name] = strategy.NewTracker(p, 0.3, strategy.Keywords{
			Cooperation: cfg.Keywords.Cooperation,
			Competition: cfg.Keywords.Competition,
		}, logger)
	}

	cues := knowledge.Cues{
		DomainTerms: cfg.Keywords.DomainTerms,
		Confidence:  cfg.Keywords.Confidence,
		Uncertainty: cfg.Keywords.Uncertainty,
	}
	extractor := knowledge.NewExtractor(router, arena, cues, 10, logger)
	integrator := knowledge.NewIntegrator(extractor, 0.5, 2, logger)

	runner := experiment.NewRunner("apitest", roster, arena, matrix, trackers, router, integrator,
		cfg.Simulation, cfg.Keywords, rng, logger)

	h := NewHandler(roster, arena, matrix, runner, nil, 0.7, logger)
	return h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("got %q, want ok", body["status"])
	}
}

func TestListAndGetAgents(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/agents")
	var agents []map[string]interface{}
	decodeJSON(t, resp, &agents)
	if len(agents) != 3 {
		t.Fatalf("got %d agents, want 3", len(agents))
	}

	resp = getJSON(t, ts, "/api/agents/Alice")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/agents/Ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRouteEndpointUpdatesMemory(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/route", map[string]interface{}{
		"speaker":    "Alice",
		"content":    "hello Bob",
		"recipients": []string{"Bob"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/agents/Bob/memory")
	var mem struct {
		Size           int      `json:"size"`
		DirectPartners []string `json:"direct_partners"`
	}
	decodeJSON(t, resp, &mem)
	if mem.Size != 1 {
		t.Errorf("Bob's memory size: got %d, want 1", mem.Size)
	}
	if len(mem.DirectPartners) != 1 || mem.DirectPartners[0] != "Alice" {
		t.Errorf("Bob's partners: got %v, want [Alice]", mem.DirectPartners)
	}

	// The bystander saw nothing.
	resp = getJSON(t, ts, "/api/agents/Charlie/memory")
	decodeJSON(t, resp, &mem)
	if mem.Size != 0 {
		t.Errorf("Charlie's memory size: got %d, want 0", mem.Size)
	}
}

func TestRouteEndpointValidation(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/route", map[string]interface{}{"speaker": "", "content": ""})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/route", map[string]interface{}{"speaker": "Ghost", "content": "hi"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestTrustEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/trust")
	var matrix map[string]map[string]float64
	decodeJSON(t, resp, &matrix)
	if matrix["Alice"]["Bob"] != 0.8 {
		t.Errorf("Alice->Bob: got %v, want 0.8", matrix["Alice"]["Bob"])
	}

	resp = getJSON(t, ts, "/api/trust/Alice/recommend")
	var rec map[string]string
	decodeJSON(t, resp, &rec)
	if rec["partner"] != "Bob" && rec["partner"] != "Charlie" {
		t.Errorf("got partner %q", rec["partner"])
	}

	resp = getJSON(t, ts, "/api/trust/clusters")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("got status %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestIntegrateAndSnapshotEndpoints(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/integrate", map[string]string{"topic": "collaboration"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	var result knowledge.Result
	decodeJSON(t, resp, &result)
	if result.Topic != "collaboration" {
		t.Errorf("got topic %q", result.Topic)
	}
	if len(result.Extracts) != 3 {
		t.Errorf("got %d extracts, want 3", len(result.Extracts))
	}

	resp = getJSON(t, ts, "/api/snapshot")
	var snap experiment.Snapshot
	decodeJSON(t, resp, &snap)
	if len(snap.IntegrationHistory) != 1 {
		t.Errorf("got %d integrations in snapshot, want 1", len(snap.IntegrationHistory))
	}
}

func TestArchiveUnconfigured(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := getJSON(t, ts, "/api/archive/search?q=trust")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want 503", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRunPhaseEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestHandler(t))
	defer ts.Close()

	resp := postJSON(t, ts, "/api/phases", map[string]interface{}{"name": "introduction", "turns": 2})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	var body struct {
		Phase string `json:"phase"`
		Turns int    `json:"turns"`
	}
	decodeJSON(t, resp, &body)
	if body.Turns == 0 {
		t.Error("phase run recorded no turns")
	}

	resp = postJSON(t, ts, "/api/phases", map[string]interface{}{"name": "", "turns": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}
