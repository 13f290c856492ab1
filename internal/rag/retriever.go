package rag

import (
	"context"

	"file-qa/internal/embedding"
	"file-qa/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

// VectorStore is implemented by chromemdb.VectorDBManager, db.Store and qdrantdb.Store
type VectorStore interface {
	Initialize(ctx context.Context) error
	Insert(ctx context.Context, chunks []string, embeddings [][]float32) error
	Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

type Retriever struct {
	embedder  embeddings.Embedder
	store     VectorStore
	topK      int
	threshold float32
}

func NewRetriever(embedder embeddings.Embedder, store VectorStore, topK int, threshold float32) *Retriever {
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	if threshold <= 0 {
		threshold = models.DefaultDistanceThreshold
	}
	return &Retriever{embedder: embedder, store: store, topK: topK, threshold: threshold}
}

// Retrieve returns the stored chunks closest to question whose distance is strictly
// below the threshold, nearest first. No match is an empty result, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]models.QueryResult, error) {
	vector, err := embedding.EmbedQuestion(ctx, r.embedder, question)
	if err != nil {
		return nil, err
	}

	candidates, err := r.store.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, err
	}

	results := make([]models.QueryResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Distance < r.threshold {
			results = append(results, c)
		}
	}
	log.Debug().Int("candidates", len(candidates)).Int("kept", len(results)).
		Float32("threshold", r.threshold).Msg("Retrieved chunks")
	return results, nil
}
