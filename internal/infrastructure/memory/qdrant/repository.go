// Package qdrant provides a MemoryStore implementation using Qdrant.
package qdrant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ersonp/gm-core/internal/domain/entities"
	"github.com/ersonp/gm-core/internal/infrastructure/config"
)

// Repository implements the MemoryStore interface using Qdrant.
type Repository struct {
	client     pb.CollectionsClient
	points     pb.PointsClient
	collection string
	conn       *grpc.ClientConn
}

// NewRepository creates a new Qdrant repository.
func NewRepository(cfg config.QdrantConfig) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}

	return &Repository{
		client:     pb.NewCollectionsClient(conn),
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
		conn:       conn,
	}, nil
}

// Close closes the gRPC connection.
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// EnsureCollection creates the collection if it doesn't exist.
func (r *Repository) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	_, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err == nil {
		return nil
	}

	_, err = r.client.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     vectorSize,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	return nil
}

// Save stores a memory fragment with its embedding.
func (r *Repository) Save(ctx context.Context, fragment entities.MemoryFragment) error {
	return r.SaveBatch(ctx, []entities.MemoryFragment{fragment})
}

// SaveBatch stores multiple memory fragments.
func (r *Repository) SaveBatch(ctx context.Context, fragments []entities.MemoryFragment) error {
	points := make([]*pb.PointStruct, 0, len(fragments))

	for _, fragment := range fragments {
		pointID := fragment.ID
		if pointID == "" {
			pointID = uuid.New().String()
		}

		point := &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{
					Uuid: pointID,
				},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{
						Data: fragment.Embedding,
					},
				},
			},
			Payload: map[string]*pb.Value{
				"world_id":   {Kind: &pb.Value_StringValue{StringValue: fragment.WorldID}},
				"kind":       {Kind: &pb.Value_StringValue{StringValue: string(fragment.Kind)}},
				"scope_id":   {Kind: &pb.Value_StringValue{StringValue: fragment.ScopeID}},
				"speaker":    {Kind: &pb.Value_StringValue{StringValue: fragment.Speaker}},
				"text":       {Kind: &pb.Value_StringValue{StringValue: fragment.Text}},
				"game_time":  {Kind: &pb.Value_IntegerValue{IntegerValue: int64(fragment.GameTime)}},
				"created_at": {Kind: &pb.Value_StringValue{StringValue: fragment.CreatedAt.Format(time.RFC3339)}},
			},
		}
		points = append(points, point)
	}

	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points: %w", err)
	}

	return nil
}

// Search performs a semantic search and returns similar fragments.
func (r *Repository) Search(ctx context.Context, embedding []float32, limit int) ([]entities.MemoryFragment, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points: %w", err)
	}

	return scoredPointsToFragments(resp.Result), nil
}

// SearchByKind performs a semantic search filtered by fragment kind.
func (r *Repository) SearchByKind(ctx context.Context, embedding []float32, kind entities.MemoryKind, limit int) ([]entities.MemoryFragment, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		Filter: &pb.Filter{
			Must: []*pb.Condition{
				{
					ConditionOneOf: &pb.Condition_Field{
						Field: &pb.FieldCondition{
							Key: "kind",
							Match: &pb.Match{
								MatchValue: &pb.Match_Keyword{
									Keyword: string(kind),
								},
							},
						},
					},
				},
			},
		},
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
		WithVectors: &pb.WithVectorsSelector{
			SelectorOptions: &pb.WithVectorsSelector_Enable{Enable: false},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("searching points by kind: %w", err)
	}

	return scoredPointsToFragments(resp.Result), nil
}

// Delete removes a fragment by its ID.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting point: %w", err)
	}

	return nil
}

// DeleteByScope removes all fragments recorded for one scope.
func (r *Repository) DeleteByScope(ctx context.Context, scopeID string) error {
	_, err := r.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{
						{
							ConditionOneOf: &pb.Condition_Field{
								Field: &pb.FieldCondition{
									Key: "scope_id",
									Match: &pb.Match{
										MatchValue: &pb.Match_Keyword{
											Keyword: scopeID,
										},
									},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("deleting points by scope: %w", err)
	}

	return nil
}

// DeleteCollection removes the collection and everything in it.
func (r *Repository) DeleteCollection(ctx context.Context) error {
	_, err := r.client.Delete(ctx, &pb.DeleteCollection{
		CollectionName: r.collection,
	})
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Count returns the total number of fragments.
func (r *Repository) Count(ctx context.Context) (uint64, error) {
	resp, err := r.client.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collection,
	})
	if err != nil {
		return 0, fmt.Errorf("getting collection info: %w", err)
	}

	if resp.Result.PointsCount == nil {
		return 0, nil
	}

	return *resp.Result.PointsCount, nil
}

// scoredPointsToFragments converts scored points to memory fragments.
func scoredPointsToFragments(points []*pb.ScoredPoint) []entities.MemoryFragment {
	fragments := make([]entities.MemoryFragment, 0, len(points))

	for _, point := range points {
		id := ""
		if uuid := point.Id.GetUuid(); uuid != "" {
			id = uuid
		}

		payload := point.Payload
		createdAt, _ := time.Parse(time.RFC3339, getStringValue(payload, "created_at"))

		fragments = append(fragments, entities.MemoryFragment{
			ID:        id,
			WorldID:   getStringValue(payload, "world_id"),
			Kind:      entities.MemoryKind(getStringValue(payload, "kind")),
			ScopeID:   getStringValue(payload, "scope_id"),
			Speaker:   getStringValue(payload, "speaker"),
			Text:      getStringValue(payload, "text"),
			GameTime:  entities.GameTime(getIntValue(payload, "game_time")),
			CreatedAt: createdAt,
		})
	}

	return fragments
}

// Helper functions for payload extraction.
func getStringValue(payload map[string]*pb.Value, key string) string {
	if v, ok := payload[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getIntValue(payload map[string]*pb.Value, key string) int64 {
	if v, ok := payload[key]; ok {
		return v.GetIntegerValue()
	}
	return 0
}
