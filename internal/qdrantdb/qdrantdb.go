package qdrantdb

import (
	"context"
	"fmt"

	"file-qa/internal/config"
	"file-qa/internal/models"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadID      = "id"
	payloadContent = "content"
)

// Store implements the vector store on a Qdrant collection over gRPC.
// The collection is created on the first insert, once the vector size is known.
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
}

// NewStore creates a Qdrant-backed store; the connection is established lazily.
func NewStore(cfg *config.QdrantConfig) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  cfg.Collection,
	}, nil
}

func (s *Store) exists(ctx context.Context) (bool, error) {
	resp, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return false, err
	}
	return resp.GetResult().GetExists(), nil
}

// Initialize drops the collection if present
func (s *Store) Initialize(ctx context.Context) error {
	ok, err := s.exists(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreInitialization, err)
	}
	if ok {
		if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
			return fmt.Errorf("%w: failed to drop collection: %v", models.ErrStoreInitialization, err)
		}
	}
	log.Debug().Str("collection", s.collection).Msg("Reset qdrant collection")
	return nil
}

func (s *Store) create(ctx context.Context, size int) error {
	_, err := s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(size),
			Distance: pb.Distance_Cosine,
		}}},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %v", models.ErrStoreInitialization, err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", models.ErrLengthMismatch, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	ok, err := s.exists(ctx)
	if err != nil {
		return fmt.Errorf("qdrant collection lookup: %w", err)
	}
	if !ok {
		if err := s.create(ctx, len(embeddings[0])); err != nil {
			return err
		}
	}
	offset, err := s.Count(ctx)
	if err != nil {
		return err
	}

	wait := true
	points := make([]*pb.PointStruct, len(chunks))
	for i, content := range chunks {
		index := offset + i
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(index)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: embeddings[i]}}},
			Payload: map[string]*pb.Value{
				payloadID:                {Kind: &pb.Value_StringValue{StringValue: models.ChunkID(index)}},
				payloadContent:           {Kind: &pb.Value_StringValue{StringValue: content}},
				models.SourceMetadataKey: {Kind: &pb.Value_StringValue{StringValue: models.ChunkSource(index)}},
			},
		}
	}

	if _, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	log.Info().Int("documents", len(points)).Msg("Upserted documents to qdrant")
	return nil
}

func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return nil, nil
	}
	ok, err := s.exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant collection lookup: %w", err)
	}
	if !ok {
		return nil, nil
	}

	resp, err := s.points.Search(ctx, &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         embedding,
		Limit:          uint64(k),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	results := make([]models.QueryResult, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = models.QueryResult{
			ID:       pt.Payload[payloadID].GetStringValue(),
			Content:  pt.Payload[payloadContent].GetStringValue(),
			Distance: 1 - pt.Score,
		}
	}
	models.SortResults(results)
	return results, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	ok, err := s.exists(ctx)
	if err != nil {
		return 0, fmt.Errorf("qdrant collection lookup: %w", err)
	}
	if !ok {
		return 0, nil
	}
	exact := true
	resp, err := s.points.Count(ctx, &pb.CountPoints{CollectionName: s.collection, Exact: &exact})
	if err != nil {
		return 0, fmt.Errorf("qdrant count: %w", err)
	}
	return int(resp.GetResult().GetCount()), nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}
