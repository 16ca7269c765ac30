// Package config loads and validates the application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"coursenav/internal/domain"
)

// Backend names accepted in the config file.
const (
	EmbeddingLocal  = "local"
	EmbeddingOpenAI = "openai"

	StorageSQLite = "sqlite"
	StorageQdrant = "qdrant"
)

// ChunkingConfig controls how documents are split. Overlap is a pointer so
// an explicit `overlap: 0` in the file survives defaulting instead of being
// mistaken for an absent key.
type ChunkingConfig struct {
	Size    int  `yaml:"size"`
	Overlap *int `yaml:"overlap"`
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Backend is "local" or "openai".
	Backend     string `yaml:"backend"`
	Model       string `yaml:"model,omitempty"`
	Dimensions  int    `yaml:"dimensions,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// QdrantConfig holds connection details for a remote Qdrant index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	Collection  string `yaml:"collection"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty"`
}

// StorageConfig selects and configures the vector index backend.
type StorageConfig struct {
	// Backend is "sqlite" or "qdrant".
	Backend string        `yaml:"backend"`
	Qdrant  *QdrantConfig `yaml:"qdrant,omitempty"`
}

// RetrievalConfig tunes similarity search.
type RetrievalConfig struct {
	MaxResults       int     `yaml:"max_results"`
	SimilarityFloor  float64 `yaml:"similarity_floor"`
	QueryTimeoutSecs int     `yaml:"query_timeout_secs,omitempty"`
}

// AnswerConfig configures the chat model used for answer synthesis.
type AnswerConfig struct {
	Model     string `yaml:"model,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	BaseURL   string `yaml:"base_url,omitempty"`
}

// Config is the root application configuration.
type Config struct {
	// DocsDir is the corpus directory.
	DocsDir string `yaml:"docs_dir"`
	// CacheDir holds the index artifact and manifest.
	CacheDir  string          `yaml:"cache_dir"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Answer    AnswerConfig    `yaml:"answer"`
}

// Default returns the configuration used when no file exists: a local
// embedder over a SQLite index, no credentials needed.
func Default() *Config {
	return &Config{
		DocsDir:  "docs",
		CacheDir: ".coursenav",
		Chunking: ChunkingConfig{Size: 800, Overlap: intPtr(100)},
		Embedding: EmbeddingConfig{
			Backend: EmbeddingLocal,
		},
		Storage: StorageConfig{Backend: StorageSQLite},
		Retrieval: RetrievalConfig{
			MaxResults:      3,
			SimilarityFloor: 0.1,
		},
		Answer: AnswerConfig{APIKeyEnv: "OPENAI_API_KEY"},
	}
}

// Load reads the config from path. A missing file yields the defaults;
// a present file is validated after defaults are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.DocsDir == "" {
		cfg.DocsDir = def.DocsDir
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = def.CacheDir
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = def.Chunking.Size
	}
	if cfg.Chunking.Overlap == nil {
		overlap := *def.Chunking.Overlap
		if overlap >= cfg.Chunking.Size {
			// Small custom windows get a proportional overlap.
			overlap = cfg.Chunking.Size / 8
		}
		cfg.Chunking.Overlap = &overlap
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = EmbeddingLocal
	}
	if cfg.Embedding.Backend == EmbeddingOpenAI {
		if cfg.Embedding.APIKeyEnv == "" {
			cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedding.TimeoutSecs == 0 {
			cfg.Embedding.TimeoutSecs = 30
		}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageSQLite
	}
	if cfg.Storage.Backend == StorageQdrant {
		if cfg.Storage.Qdrant == nil {
			cfg.Storage.Qdrant = &QdrantConfig{}
		}
		if cfg.Storage.Qdrant.URL == "" {
			cfg.Storage.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Storage.Qdrant.Collection == "" {
			cfg.Storage.Qdrant.Collection = "coursenav"
		}
		if cfg.Storage.Qdrant.TimeoutSecs == 0 {
			cfg.Storage.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = def.Retrieval.MaxResults
	}
	if cfg.Retrieval.SimilarityFloor == 0 {
		cfg.Retrieval.SimilarityFloor = def.Retrieval.SimilarityFloor
	}
	if cfg.Answer.APIKeyEnv == "" {
		cfg.Answer.APIKeyEnv = "OPENAI_API_KEY"
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Embedding.Backend {
	case EmbeddingLocal, EmbeddingOpenAI:
	default:
		return fmt.Errorf("%w: unknown embedding backend %q", domain.ErrConfig, c.Embedding.Backend)
	}
	switch c.Storage.Backend {
	case StorageSQLite, StorageQdrant:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", domain.ErrConfig, c.Storage.Backend)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrConfig, c.Chunking.Size)
	}
	if c.Chunking.Overlap == nil {
		return fmt.Errorf("%w: chunk overlap is not set", domain.ErrConfig)
	}
	if *c.Chunking.Overlap < 0 || *c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", domain.ErrConfig, *c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.MaxResults <= 0 {
		return fmt.Errorf("%w: max results must be positive, got %d", domain.ErrConfig, c.Retrieval.MaxResults)
	}
	if c.Retrieval.SimilarityFloor < 0 || c.Retrieval.SimilarityFloor > 1 {
		return fmt.Errorf("%w: similarity floor %g must be in [0, 1]", domain.ErrConfig, c.Retrieval.SimilarityFloor)
	}
	return nil
}

func intPtr(n int) *int { return &n }

// IndexPath is the SQLite index location under the cache directory.
func (c *Config) IndexPath() string {
	return filepath.Join(c.CacheDir, "index.db")
}

// ManifestPath is the document manifest location under the cache directory.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.CacheDir, "manifest.json")
}
