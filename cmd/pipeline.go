package main

import (
	"fmt"

	"file-qa/internal/chromemdb"
	"file-qa/internal/config"
	"file-qa/internal/db"
	"file-qa/internal/embedding"
	"file-qa/internal/llmservice"
	"file-qa/internal/prompt"
	"file-qa/internal/qdrantdb"
	"file-qa/internal/rag"

	"github.com/rs/zerolog/log"
)

// newStore opens the vector store selected by cfg.Type
func newStore(cfg *config.VectorStoreConfig) (rag.VectorStore, error) {
	switch cfg.Type {
	case config.StoreChromem, "":
		return chromemdb.NewVectorDBManager(&cfg.Chromem)
	case config.StorePGVector:
		return db.NewStore(&cfg.PGVector)
	case config.StoreQdrant:
		return qdrantdb.NewStore(&cfg.Qdrant)
	default:
		return nil, fmt.Errorf("unknown vector store type: %s", cfg.Type)
	}
}

// newPipeline wires embedder, store and prompt template. The caller closes the store.
func newPipeline(cfg *config.Config, answerer rag.Answerer) (*rag.RAG, rag.VectorStore, error) {
	promptCfg, err := prompt.LoadConfig(cfg.RAG.PromptConfigPath, cfg.RAG.PromptKey)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		return nil, nil, err
	}
	store, err := newStore(&cfg.VectorStore)
	if err != nil {
		return nil, nil, err
	}
	log.Debug().Str("store", cfg.VectorStore.Type).Msg("Pipeline ready")
	return rag.NewRAG(embedder, store, answerer, promptCfg, &cfg.RAG), store, nil
}

// connector returns chat clients for keys supplied at runtime
func connector(cfg *config.LLMConfig) rag.Connector {
	return func(apiKey string) (rag.ChatClient, error) {
		client, err := llmservice.NewClient(cfg, apiKey)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func closeStore(store rag.VectorStore) {
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing vector store")
	}
}
