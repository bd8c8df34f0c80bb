// Package config loads typed configuration for docintel from a YAML file with
// environment variable overrides, mirroring the layered config/env pattern
// used throughout the source this module grew out of.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ChunkingConfig controls the chunker.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	MinChunkSize int `yaml:"min_chunk_size"`
}

// EmbeddingConfig controls the embedding client.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	Path      string `yaml:"path"`
	APIKey    string `yaml:"api_key"`
	APIHeader string `yaml:"api_header"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"embedding_dim"`
	BatchSize int    `yaml:"embedding_batch_size"`
	Timeout   int    `yaml:"timeout_seconds"`
}

// VectorIndexConfig controls the on-disk vector index.
type VectorIndexConfig struct {
	Dir                    string  `yaml:"vector_index_path"`
	CompactionTombstoneMax float64 `yaml:"compaction_tombstone_ratio"`
}

// SearchConfig controls the hybrid searcher.
type SearchConfig struct {
	TopKDefault      int           `yaml:"search_topk_default"`
	BranchMultiplier int           `yaml:"search_branch_multiplier"`
	BranchCap        int           `yaml:"search_branch_cap"`
	RRFConstant      int           `yaml:"rrf_constant"`
	QueryCacheTTL    time.Duration `yaml:"query_cache_ttl"`
	EmbeddingTTL     time.Duration `yaml:"embedding_cache_ttl"`
}

// GenerationConfig controls the RAG orchestrator's LLM call.
type GenerationConfig struct {
	Provider           string  `yaml:"generation_provider"` // "openai" | "anthropic"
	DefaultModel       string  `yaml:"generation_model_default"`
	DefaultTemperature float64 `yaml:"generation_temperature_default"`
	DefaultMaxTokens   int     `yaml:"generation_max_tokens_default"`
}

// TimeoutConfig gathers the per-dependency deadlines.
type TimeoutConfig struct {
	LLM       time.Duration `yaml:"llm_request_timeout"`
	Embedding time.Duration `yaml:"embedding_request_timeout"`
	Extractor time.Duration `yaml:"extractor_timeout"`
}

// ExtractConfig controls the MIME-dispatched extractors.
type ExtractConfig struct {
	WhisperModelPath string `yaml:"whisper_model_path"`
	VisionModel      string `yaml:"vision_model"`
}

// DatabaseConfig configures the primary store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures the cache backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ObjectStoreConfig configures the document blob store: local disk by
// default, or S3 (and S3-compatible services) when Enabled is true.
type ObjectStoreConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Bucket       string `yaml:"bucket"`
	Region       string `yaml:"region"`
	Prefix       string `yaml:"prefix"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
	LocalDir     string `yaml:"local_dir"` // owner-isolated upload storage when Enabled is false
}

// QueueConfig configures the durable ingestion job queue.
type QueueConfig struct {
	Backend string   `yaml:"backend"` // "memory" | "kafka"
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// AnthropicConfig configures the Anthropic generation provider.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig configures the OpenAI generation provider. The embedding
// client is configured separately by EmbeddingConfig.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// OTelConfig controls metrics export. When OTLPEndpoint is empty, metric
// instruments are still created but recorded against the no-op global
// meter, so the service runs without a collector.
type OTelConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// IngestConfig controls the worker pool.
type IngestConfig struct {
	WorkerCount int `yaml:"worker_count"`
}

// Config is the top-level, typed configuration tree for the service.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	ObjectStore ObjectStoreConfig `yaml:"object_store"`
	Queue       QueueConfig       `yaml:"queue"`

	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`

	Chunking   ChunkingConfig    `yaml:"chunking"`
	Embedding  EmbeddingConfig   `yaml:"embedding"`
	Vector     VectorIndexConfig `yaml:"vector"`
	Search     SearchConfig      `yaml:"search"`
	Generation GenerationConfig  `yaml:"generation"`
	Timeouts   TimeoutConfig     `yaml:"timeouts"`
	Extract    ExtractConfig     `yaml:"extract"`
	Ingest     IngestConfig      `yaml:"ingest"`
	OTel       OTelConfig        `yaml:"otel"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Host: "0.0.0.0",
		Port: 8080,
		Chunking: ChunkingConfig{
			ChunkSize:    512,
			ChunkOverlap: 50,
			MinChunkSize: 100,
		},
		Embedding: EmbeddingConfig{
			Path:      "/v1/embeddings",
			APIHeader: "Authorization",
			Dimension: 1536,
			BatchSize: 100,
			Timeout:   30,
		},
		Vector: VectorIndexConfig{
			Dir:                    "./data/indexes",
			CompactionTombstoneMax: 0.2,
		},
		ObjectStore: ObjectStoreConfig{
			LocalDir: "./data/documents",
		},
		Search: SearchConfig{
			TopKDefault:      5,
			BranchMultiplier: 4,
			BranchCap:        100,
			RRFConstant:      60,
			QueryCacheTTL:    time.Hour,
			EmbeddingTTL:     24 * time.Hour,
		},
		Generation: GenerationConfig{
			Provider:           "openai",
			DefaultModel:       "gpt-4o-mini",
			DefaultTemperature: 0.3,
			DefaultMaxTokens:   1000,
		},
		Timeouts: TimeoutConfig{
			LLM:       60 * time.Second,
			Embedding: 30 * time.Second,
			Extractor: 2 * time.Minute,
		},
		Ingest: IngestConfig{WorkerCount: 4},
		Queue:  QueueConfig{Backend: "memory", Topic: "ingestion-jobs"},
		OTel:   OTelConfig{ServiceName: "docintel"},
	}
}

// Load reads an optional .env file, then an optional YAML file at path
// (skipped silently if path is empty or the file does not exist), layering
// both over Default(), and finally applies a fixed set of environment
// overrides for secrets and deployment-specific values.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is not an error

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.Chunking.ChunkSize <= 0 {
		return Config{}, fmt.Errorf("chunk_size must be positive")
	}
	if cfg.Chunking.ChunkOverlap < 0 || cfg.Chunking.ChunkOverlap >= cfg.Chunking.ChunkSize {
		return Config{}, fmt.Errorf("chunk_overlap must be within [0, chunk_size)")
	}
	if cfg.Chunking.MinChunkSize < 0 {
		return Config{}, fmt.Errorf("min_chunk_size must not be negative")
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("DATABASE_DSN", &cfg.Database.DSN)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("ANTHROPIC_API_KEY", &cfg.Anthropic.APIKey)
	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.OpenAI.BaseURL)
	str("EMBEDDING_API_KEY", &cfg.Embedding.APIKey)
	str("EMBEDDING_BASE_URL", &cfg.Embedding.BaseURL)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("VECTOR_INDEX_PATH", &cfg.Vector.Dir)
	str("OBJECT_STORE_BUCKET", &cfg.ObjectStore.Bucket)
	str("OBJECT_STORE_REGION", &cfg.ObjectStore.Region)
	str("OBJECT_STORE_ENDPOINT", &cfg.ObjectStore.Endpoint)
	str("OBJECT_STORE_ACCESS_KEY", &cfg.ObjectStore.AccessKey)
	str("OBJECT_STORE_SECRET_KEY", &cfg.ObjectStore.SecretKey)
	str("LOCAL_STORAGE_DIR", &cfg.ObjectStore.LocalDir)
	num("INGEST_WORKER_COUNT", &cfg.Ingest.WorkerCount)
	num("PORT", &cfg.Port)
	str("GENERATION_PROVIDER", &cfg.Generation.Provider)
	str("QUEUE_BACKEND", &cfg.Queue.Backend)
	str("WHISPER_MODEL_PATH", &cfg.Extract.WhisperModelPath)
	str("VISION_MODEL", &cfg.Extract.VisionModel)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.OTel.OTLPEndpoint)
}
