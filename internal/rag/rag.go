package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"file-qa/internal/config"
	"file-qa/internal/embedding"
	"file-qa/internal/models"
	"file-qa/internal/parser"
	"file-qa/internal/prompt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
)

// Answerer turns an assembled prompt into the model's reply
type Answerer interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type RAG struct {
	embedder  embeddings.Embedder
	store     VectorStore
	retriever *Retriever
	answerer  Answerer
	promptCfg *prompt.Config
	cfg       *config.RAGConfig
}

// NewRAG wires the pipeline. answerer may be nil until a credential is known.
func NewRAG(embedder embeddings.Embedder, store VectorStore, answerer Answerer, promptCfg *prompt.Config, cfg *config.RAGConfig) *RAG {
	if promptCfg == nil {
		promptCfg = &prompt.Config{}
	}
	return &RAG{
		embedder:  embedder,
		store:     store,
		retriever: NewRetriever(embedder, store, cfg.TopK, cfg.DistanceThreshold),
		answerer:  answerer,
		promptCfg: promptCfg,
		cfg:       cfg,
	}
}

func (r *RAG) SetAnswerer(answerer Answerer) {
	r.answerer = answerer
}

// Chunk extracts and splits a document without touching the store
func (r *RAG) Chunk(fileName string, data []byte) ([]models.Chunk, error) {
	text, err := parser.LoadDocument(fileName, data)
	if err != nil {
		return nil, err
	}
	chunks, err := parser.ChunkText(text, r.cfg.ChunkSize, r.cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, fileName)
	}
	return chunks, nil
}

// Ingest replaces the store contents with the chunks of the document and returns
// how many were stored. The store is reset only after every chunk was embedded.
func (r *RAG) Ingest(ctx context.Context, fileName string, data []byte) (int, error) {
	chunks, err := r.Chunk(fileName, data)
	if err != nil {
		return 0, err
	}
	log.Info().Str("file", fileName).Int("chunks", len(chunks)).Msg("Chunked document")

	vectors, err := embedding.EmbedChunks(ctx, r.embedder, chunks)
	if err != nil {
		return 0, err
	}

	if err := r.store.Initialize(ctx); err != nil {
		return 0, err
	}
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	if err := r.store.Insert(ctx, contents, vectors); err != nil {
		return 0, err
	}

	log.Info().Str("file", fileName).Int("chunks", len(chunks)).Msg("Ingested document")
	return len(chunks), nil
}

// IngestFile reads filePath and ingests it under its base name
func (r *RAG) IngestFile(ctx context.Context, filePath string) (int, error) {
	if !parser.IsSupported(filePath) {
		return 0, fmt.Errorf("%w: %s", models.ErrUnsupportedFileType, filepath.Ext(filePath))
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return r.Ingest(ctx, filepath.Base(filePath), data)
}

// RequireDocument fails with ErrNoDocument while the store holds no chunks
func (r *RAG) RequireDocument(ctx context.Context) error {
	n, err := r.store.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNoDocument
	}
	return nil
}

func (r *RAG) Retrieve(ctx context.Context, question string) ([]models.QueryResult, error) {
	return r.retriever.Retrieve(ctx, question)
}

func (r *RAG) BuildPrompt(question string, results []models.QueryResult) string {
	documents := make([]string, len(results))
	for i, res := range results {
		documents[i] = res.Content
	}
	return prompt.Build(r.promptCfg, documents, question)
}

// Query retrieves context for question, assembles the prompt and asks the model
func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	if r.answerer == nil {
		return nil, models.ErrNoCredential
	}
	if err := r.RequireDocument(ctx); err != nil {
		return nil, err
	}

	results, err := r.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	p := r.BuildPrompt(question, results)

	answer, err := r.answerer.GenerateContent(ctx, p)
	if err != nil {
		return nil, err
	}

	source := make([]string, len(results))
	for i, res := range results {
		source[i] = res.ID
	}
	return &models.PromptResponse{
		Query:   question,
		Source:  source,
		Prompt:  p,
		Content: answer,
		Results: results,
	}, nil
}
