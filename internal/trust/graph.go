package trust

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Graph mirrors trust scores into Neo4j for offline analysis. The in-memory
// Matrix stays authoritative; mirror failures are warnings, never fatal.
type Graph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewGraph creates a trust graph mirror backed by Neo4j.
func NewGraph(driver neo4j.DriverWithContext, logger *zap.Logger) *Graph {
	return &Graph{driver: driver, logger: logger}
}

// Seed writes the full matrix into the graph, creating agent nodes and
// TRUSTS edges for every pair.
func (g *Graph) Seed(ctx context.Context, m *Matrix) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for truster, row := range m.Snapshot() {
		for trustee, score := range row {
			_, err := session.Run(ctx,
				`MERGE (a:Agent {name: $truster})
				 MERGE (b:Agent {name: $trustee})
				 MERGE (a)-[r:TRUSTS]->(b)
				 SET r.score = $score, r.updated_at = datetime()`,
				map[string]interface{}{
					"truster": truster,
					"trustee": trustee,
					"score":   score,
				})
			if err != nil {
				return fmt.Errorf("seed trust edge %s->%s: %w", truster, trustee, err)
			}
		}
	}
	return nil
}

// Mirror records one applied update on the corresponding edge.
func (g *Graph) Mirror(ctx context.Context, truster, trustee string, score float64) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (a:Agent {name: $truster})
		 MERGE (b:Agent {name: $trustee})
		 MERGE (a)-[r:TRUSTS]->(b)
		 SET r.score = $score, r.updated_at = datetime()`,
		map[string]interface{}{
			"truster": truster,
			"trustee": trustee,
			"score":   score,
		})
	if err != nil {
		g.logger.Warn("trust graph mirror failed",
			zap.String("truster", truster),
			zap.String("trustee", trustee),
			zap.Error(err))
	}
}

// HighTrust returns the trustees each truster scores at or above threshold,
// read back from the graph.
func (g *Graph) HighTrust(ctx context.Context, threshold float64) (map[string][]string, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Agent)-[r:TRUSTS]->(b:Agent)
		 WHERE r.score >= $threshold
		 RETURN a.name, b.name ORDER BY a.name, b.name`,
		map[string]interface{}{"threshold": threshold})
	if err != nil {
		return nil, fmt.Errorf("query high trust: %w", err)
	}

	out := make(map[string][]string)
	for result.Next(ctx) {
		rec := result.Record()
		truster, _ := rec.Get("a.name")
		trustee, _ := rec.Get("b.name")
		out[truster.(string)] = append(out[truster.(string)], trustee.(string))
	}
	return out, nil
}
