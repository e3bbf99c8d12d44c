package archive

import (
	"context"
	"fmt"
	"strconv"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds connection settings for the Qdrant instance backing the archive.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func dial(cfg Config) (*grpc.ClientConn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect %s: %w", addr, err)
	}
	return conn, nil
}

func (a *Archive) ensureCollection(ctx context.Context, dimension uint64) error {
	if _, err := a.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: collection}); err == nil {
		return nil
	}
	_, err := a.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dimension,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	return nil
}

func (a *Archive) upsertResult(ctx context.Context, id string, vector []float32, hit Hit) error {
	payload := map[string]*pb.Value{
		"topic":           stringValue(hit.Topic),
		"summary":         stringValue(hit.Summary),
		"emergence_score": stringValue(strconv.FormatFloat(hit.EmergenceScore, 'f', 4, 64)),
		"archived_at":     stringValue(hit.ArchivedAt),
	}
	_, err := a.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: collection,
		Points: []*pb.PointStruct{
			{
				Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
				Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}}},
				Payload: payload,
			},
		},
	})
	return err
}

func (a *Archive) searchResults(ctx context.Context, vector []float32, limit uint64) ([]Hit, error) {
	resp, err := a.points.Search(ctx, &pb.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          limit,
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := Hit{
			ID:    r.Id.GetUuid(),
			Score: r.Score,
		}
		hit.Topic = payloadString(r.Payload, "topic")
		hit.Summary = payloadString(r.Payload, "summary")
		hit.ArchivedAt = payloadString(r.Payload, "archived_at")
		if score, perr := strconv.ParseFloat(payloadString(r.Payload, "emergence_score"), 64); perr == nil {
			hit.EmergenceScore = score
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func payloadString(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		if sv, ok := v.Kind.(*pb.Value_StringValue); ok {
			return sv.StringValue
		}
	}
	return ""
}
