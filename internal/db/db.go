package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"file-qa/internal/config"
	"file-qa/internal/models"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string          `bun:"id,pk"`
	Seq           int             `bun:"seq,notnull"`
	Content       string          `bun:"content,notnull"`
	Source        string          `bun:"source,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
}

// sqlstate of a missing relation, returned by Count before the first ingest
const undefinedTable = "42P01"

type searchRow struct {
	ID       string  `bun:"id"`
	Content  string  `bun:"content"`
	Distance float32 `bun:"distance"`
}

// Store is a pgvector backed vector store using bun
type Store struct {
	db *bun.DB
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens (lazily) a connection pool with the configured driver
func ConnectDB(cfg *config.PGVectorConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	switch cfg.Driver {
	case config.DriverPQ:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPG, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown postgres driver: %s", cfg.Driver)
	}
}

func NewStore(cfg *config.PGVectorConfig) (*Store, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: NewDB(sqldb, cfg.Debug)}, nil
}

// Initialize enables the extension and recreates an empty documents table
func (s *Store) Initialize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("%w: failed to enable vector extension: %v", models.ErrStoreInitialization, err)
	}
	if _, err := s.db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to drop documents: %v", models.ErrStoreInitialization, err)
	}
	if _, err := s.db.NewCreateTable().Model((*Document)(nil)).Exec(ctx); err != nil {
		return fmt.Errorf("%w: failed to create documents: %v", models.ErrStoreInitialization, err)
	}
	log.Debug().Msg("Initialized pgvector documents table")
	return nil
}

func (s *Store) Insert(ctx context.Context, chunks []string, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", models.ErrLengthMismatch, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	offset, err := s.Count(ctx)
	if err != nil {
		return err
	}
	docs := make([]Document, len(chunks))
	for i, content := range chunks {
		index := offset + i
		docs[i] = Document{
			ID:        models.ChunkID(index),
			Seq:       index,
			Content:   content,
			Source:    models.ChunkSource(index),
			Embedding: pgvector.NewVector(embeddings[i]),
		}
	}

	if _, err := s.db.NewInsert().Model(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("failed to store documents: %v", err)
	}
	log.Info().Int("documents", len(docs)).Msg("Stored documents in pgvector")
	return nil
}

// Query orders by the pgvector cosine distance operator, ties broken by insertion order
func (s *Store) Query(ctx context.Context, embedding []float32, k int) ([]models.QueryResult, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(embedding)

	var rows []searchRow
	err := s.db.NewSelect().
		Model((*Document)(nil)).
		Column("id", "content").
		ColumnExpr("embedding <=> ? AS distance", vec).
		OrderExpr("embedding <=> ?", vec).
		OrderExpr("seq ASC").
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %v", err)
	}

	results := make([]models.QueryResult, len(rows))
	for i, r := range rows {
		results[i] = models.QueryResult{ID: r.ID, Content: r.Content, Distance: r.Distance}
	}
	return results, nil
}

// Count returns the number of stored chunks, zero while the table does not exist yet
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Document)(nil)).Count(ctx)
	if isUndefinedTable(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %v", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUndefinedTable(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == undefinedTable
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == undefinedTable
	}
	return false
}
