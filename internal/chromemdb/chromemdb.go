package chromemdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"file-qa/internal/config"
	"file-qa/internal/helper"
	"file-qa/internal/models"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// collection metadata understood by chroma-style stores; chromem-go only does cosine
var collectionMetadata = map[string]string{"hnsw:space": "cosine"}

var errEmbeddingRequired = errors.New("documents and queries must carry precomputed embeddings")

// VectorDBManager keeps one persistent chromem-go collection holding the chunks of the current document
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	dbPath         string
	collectionName string
	compress       bool
	encryptionKey  string
	filePath       string
}

// NewVectorDBManager opens the persistent database at cfg.Path, picking up a
// collection left there by an earlier ingest
func NewVectorDBManager(cfg *config.ChromemConfig) (*VectorDBManager, error) {
	if err := helper.CreateFolder(cfg.Path); err != nil {
		return nil, err
	}
	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %v", err)
	}

	return &VectorDBManager{
		db:             db,
		collection:     db.GetCollection(cfg.Collection, rejectEmbedding),
		dbPath:         cfg.Path,
		collectionName: cfg.Collection,
		compress:       cfg.Compress,
		encryptionKey:  cfg.EncryptionKey,
		filePath:       cfg.Path + "/" + cfg.Collection + ".chromem",
	}, nil
}

// rejectEmbedding is installed as the collection embedding func: vectors always come from the pipeline embedder
func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

// Initialize wipes the database directory and creates an empty cosine collection
func (m *VectorDBManager) Initialize(ctx context.Context) error {
	m.collection = nil
	if err := helper.RecreateFolder(m.dbPath); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreInitialization, err)
	}
	db, err := chromem.NewPersistentDB(m.dbPath, m.compress)
	if err != nil {
		return fmt.Errorf("%w: failed to create database: %v", models.ErrStoreInitialization, err)
	}
	c, err := db.CreateCollection(m.collectionName, collectionMetadata, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("%w: failed to create collection: %v", models.ErrStoreInitialization, err)
	}
	m.db = db
	m.collection = c

	log.Debug().Str("path", m.dbPath).Str("collection", m.collectionName).Msg("Initialized vector store")
	return nil
}

// Insert stores chunks with their embeddings under ids doc_<n>, continuing after any entries already present
func (m *VectorDBManager) Insert(ctx context.Context, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", models.ErrLengthMismatch, len(chunks), len(embeddings))
	}
	if m.collection == nil {
		return fmt.Errorf("collection %s is not initialized", m.collectionName)
	}
	if len(chunks) == 0 {
		return nil
	}

	offset := m.collection.Count()
	docs := make([]chromem.Document, len(chunks))
	for i, content := range chunks {
		index := offset + i
		docs[i] = chromem.Document{
			ID:        models.ChunkID(index),
			Content:   content,
			Metadata:  map[string]string{models.SourceMetadataKey: models.ChunkSource(index)},
			Embedding: embeddings[i],
		}
	}

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %v", err)
	}
	log.Info().Int("documents", len(docs)).Msg("Added documents to vector database")
	return nil
}

// Query returns up to k entries nearest to embedding, by ascending cosine distance then chunk index
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error) {
	if m.collection == nil || k <= 0 {
		return nil, nil
	}
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := m.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %v", err)
	}

	out := make([]models.QueryResult, len(results))
	for i, r := range results {
		out[i] = models.QueryResult{
			ID:       r.ID,
			Content:  r.Content,
			Distance: 1 - r.Similarity,
		}
	}
	models.SortResults(out)
	return out, nil
}

// Count returns the number of stored entries
func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	if m.collection == nil {
		return 0, nil
	}
	return m.collection.Count(), nil
}

func (m *VectorDBManager) Close() error {
	return nil
}

// export to file
func (m *VectorDBManager) Export(ctx context.Context, filePath string) error {
	if m.collection == nil {
		return fmt.Errorf("collection is required")
	}
	if filePath == "" {
		filePath = m.filePath
	}

	log.Debug().Str("collection", m.collectionName).Str("file", filePath).Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").Msg("Exporting collection")
	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %v", err)
	}
	return nil
}

// import from file, replacing the current collection
func (m *VectorDBManager) Import(ctx context.Context, filePath string) error {
	// read first: the snapshot may live inside the directory Initialize wipes
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %v", err)
	}
	if err := m.Initialize(ctx); err != nil {
		return err
	}
	if err := m.db.ImportFromReader(bytes.NewReader(data), m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %v", err)
	}
	m.collection = m.db.GetCollection(m.collectionName, rejectEmbedding)
	if m.collection == nil {
		return fmt.Errorf("snapshot %s has no collection %s", filePath, m.collectionName)
	}
	log.Info().Int("documents", m.collection.Count()).Str("file", filePath).Msg("Imported collection")
	return nil
}
