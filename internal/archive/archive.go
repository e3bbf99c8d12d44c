package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	pb "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/nidhogg/emergence/internal/embedding"
	"github.com/nidhogg/emergence/internal/knowledge"
)

// collection is the Qdrant collection holding archived integration results.
const collection = "integrations"

// Archive stores integration results as embedded summaries so past
// experiments can be searched semantically.
type Archive struct {
	conn        *grpc.ClientConn
	collections pb.CollectionsClient
	points      pb.PointsClient
	embedder    embedding.Provider
	logger      *zap.Logger
}

// Hit is one archived integration result returned by Search.
type Hit struct {
	ID             string  `json:"id"`
	Topic          string  `json:"topic"`
	Summary        string  `json:"summary"`
	EmergenceScore float64 `json:"emergence_score"`
	ArchivedAt     string  `json:"archived_at"`
	Score          float32 `json:"score"`
}

// Open dials the Qdrant endpoint and returns an Archive over it.
func Open(cfg Config, embedder embedding.Provider, logger *zap.Logger) (*Archive, error) {
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	return &Archive{
		conn:        conn,
		collections: pb.NewCollectionsClient(conn),
		points:      pb.NewPointsClient(conn),
		embedder:    embedder,
		logger:      logger,
	}, nil
}

// Init ensures the backing collection exists.
func (a *Archive) Init(ctx context.Context) error {
	dim := a.embedder.Dimension()
	if dim <= 0 {
		return fmt.Errorf("archive: embedding dimension unknown")
	}
	return a.ensureCollection(ctx, uint64(dim))
}

// Store embeds a summary of the integration result and upserts it.
func (a *Archive) Store(ctx context.Context, result *knowledge.Result) error {
	summary := summarize(result)
	vectors, err := a.embedder.Embed(ctx, []string{summary})
	if err != nil {
		return fmt.Errorf("archive: embed result %s: %w", result.ID, err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("archive: no embedding returned for result %s", result.ID)
	}

	hit := Hit{
		Topic:          result.Topic,
		Summary:        summary,
		EmergenceScore: result.EmergenceScore,
		ArchivedAt:     result.Timestamp.Format(time.RFC3339),
	}
	if err := a.upsertResult(ctx, result.ID, vectors[0], hit); err != nil {
		return fmt.Errorf("archive: upsert result %s: %w", result.ID, err)
	}

	a.logger.Info("archived integration result",
		zap.String("id", result.ID),
		zap.String("topic", result.Topic),
		zap.Float64("emergence_score", result.EmergenceScore))
	return nil
}

// Search returns the archived results closest to the query text.
func (a *Archive) Search(ctx context.Context, query string, limit uint64) ([]Hit, error) {
	vectors, err := a.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("archive: embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("archive: no embedding returned for query")
	}
	return a.searchResults(ctx, vectors[0], limit)
}

// Close tears down the underlying gRPC connection.
func (a *Archive) Close() error {
	return a.conn.Close()
}

// summarize flattens an integration result into a short text suitable
// for embedding: topic, group representatives and synergy labels.
func summarize(result *knowledge.Result) string {
	var b strings.Builder
	b.WriteString(result.Topic)
	for _, g := range result.ConceptGroups {
		b.WriteString(". ")
		b.WriteString(g.Representative)
	}
	for _, s := range result.Synergies {
		b.WriteString(". synergy: ")
		b.WriteString(strings.Join(s.Pair[:], "+"))
	}
	return b.String()
}
