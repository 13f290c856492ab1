package config

import (
	"fmt"
	"os"

	"file-qa/internal/models"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLLMBaseURL   = "https://api.groq.com/openai/v1"
	DefaultLLMModel     = "llama-3.1-8b-instant"
	DefaultTemperature  = 0.7
	DefaultEmbedBaseURL = "http://localhost:11434"
	DefaultEmbedModel   = "all-minilm"
	DefaultChromemPath  = "./vector_db"
	DefaultPromptPath   = "./configs/prompt_config.yaml"
	DefaultQdrantPort   = 6334

	StoreChromem  = "chromem"
	StorePGVector = "pgvector"
	StoreQdrant   = "qdrant"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DriverPG = "pgdriver"
	DriverPQ = "pq"
)

// environment variables that override credentials from the file
const (
	EnvGroqAPIKey   = "GROQ_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	EmbedLLM    EmbedConfig       `yaml:"embed_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
}

// LLMConfig describes the hosted chat model
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Key         string  `yaml:"key"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

type EmbedConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"key"`
	Model    string `yaml:"model"`
}

type RAGConfig struct {
	ChunkSize         int     `yaml:"chunk_size"`
	ChunkOverlap      int     `yaml:"chunk_overlap"`
	TopK              int     `yaml:"top_k"`
	DistanceThreshold float32 `yaml:"distance_threshold"`
	PromptConfigPath  string  `yaml:"prompt_config_path"`
	PromptKey         string  `yaml:"prompt_key"`
}

type VectorStoreConfig struct {
	Type     string         `yaml:"type"`
	Chromem  ChromemConfig  `yaml:"chromem"`
	PGVector PGVectorConfig `yaml:"pgvector"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
}

type ChromemConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key"`
}

type PGVectorConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Driver   string `yaml:"driver"`
	Debug    bool   `yaml:"debug"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes yaml bytes over the numeric defaults, fills in empty
// strings and applies environment overrides. Numbers present in the file are
// kept as written, so temperature: 0 and chunk_overlap: 0 mean zero.
func ParseConfig(data []byte) (*Config, error) {
	cfg := numericDefaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config populated only with defaults and environment overrides
func Default() *Config {
	cfg := numericDefaults()
	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg
}

func numericDefaults() Config {
	return Config{
		LLM: LLMConfig{Temperature: DefaultTemperature},
		RAG: RAGConfig{
			ChunkSize:         models.DefaultChunkSize,
			ChunkOverlap:      models.DefaultChunkOverlap,
			TopK:              models.DefaultTopK,
			DistanceThreshold: models.DefaultDistanceThreshold,
		},
		VectorStore: VectorStoreConfig{Qdrant: QdrantConfig{Port: DefaultQdrantPort}},
	}
}

// applyDefaults fills settings left empty; zero numbers are validated, not replaced
func (c *Config) applyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultLLMBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultLLMModel
	}

	if c.EmbedLLM.Provider == "" {
		c.EmbedLLM.Provider = ProviderOllama
	}
	if c.EmbedLLM.BaseURL == "" && c.EmbedLLM.Provider == ProviderOllama {
		c.EmbedLLM.BaseURL = DefaultEmbedBaseURL
	}
	if c.EmbedLLM.Model == "" {
		c.EmbedLLM.Model = DefaultEmbedModel
	}

	if c.RAG.PromptConfigPath == "" {
		c.RAG.PromptConfigPath = DefaultPromptPath
	}
	if c.RAG.PromptKey == "" {
		c.RAG.PromptKey = models.DefaultPromptKey
	}

	vs := &c.VectorStore
	if vs.Type == "" {
		vs.Type = StoreChromem
	}
	if vs.Chromem.Path == "" {
		vs.Chromem.Path = DefaultChromemPath
	}
	if vs.Chromem.Collection == "" {
		vs.Chromem.Collection = models.DefaultCollectionName
	}
	if vs.PGVector.Driver == "" {
		vs.PGVector.Driver = DriverPG
	}
	if vs.Qdrant.Host == "" {
		vs.Qdrant.Host = "localhost"
	}
	if vs.Qdrant.Collection == "" {
		vs.Qdrant.Collection = models.DefaultCollectionName
	}
}

func (c *Config) applyEnv() {
	if key := os.Getenv(EnvGroqAPIKey); key != "" {
		c.LLM.Key = key
	}
	if key := os.Getenv(EnvOpenAIAPIKey); key != "" && c.EmbedLLM.Provider == ProviderOpenAI {
		c.EmbedLLM.Key = key
	}
}

// Validate rejects settings the pipeline cannot honour
func (c *Config) Validate() error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("temperature must be in [0, 2], got %v", c.LLM.Temperature)
	}
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must not be negative, got %d", c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	// cosine distance lies in [0, 2]
	if c.RAG.DistanceThreshold <= 0 || c.RAG.DistanceThreshold > 2 {
		return fmt.Errorf("distance_threshold must be in (0, 2], got %v", c.RAG.DistanceThreshold)
	}
	// chromem-go encrypts snapshots with AES-256
	if key := c.VectorStore.Chromem.EncryptionKey; key != "" && len(key) != 32 {
		return fmt.Errorf("chromem encryption_key must be 32 bytes, got %d", len(key))
	}
	switch c.EmbedLLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown embedding provider: %s", c.EmbedLLM.Provider)
	}
	switch c.VectorStore.Type {
	case StoreChromem, StorePGVector, StoreQdrant:
	default:
		return fmt.Errorf("unknown vector store type: %s", c.VectorStore.Type)
	}
	if c.VectorStore.Type == StoreQdrant && (c.VectorStore.Qdrant.Port <= 0 || c.VectorStore.Qdrant.Port > 65535) {
		return fmt.Errorf("qdrant port out of range: %d", c.VectorStore.Qdrant.Port)
	}
	switch c.VectorStore.PGVector.Driver {
	case DriverPG, DriverPQ:
	default:
		return fmt.Errorf("unknown postgres driver: %s", c.VectorStore.PGVector.Driver)
	}
	return nil
}
