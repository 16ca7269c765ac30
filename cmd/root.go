// Package cmd implements the coursenav command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"coursenav/internal/config"
	"coursenav/internal/domain"
	"coursenav/internal/embedder"
	"coursenav/internal/store"
)

var (
	flagConfig  string
	flagDocs    string
	flagVerbose bool

	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
)

var rootCmd = &cobra.Command{
	Use:   "coursenav",
	Short: "Semantic search and Q&A over university course documents",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			logger.SetLevel(log.DebugLevel)
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "coursenav.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagDocs, "docs", "", "documents directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDocs != "" {
		cfg.DocsDir = flagDocs
	}
	return cfg, nil
}

// buildEmbedder constructs the embedding backend the config names.
func buildEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	switch cfg.Embedding.Backend {
	case config.EmbeddingLocal:
		return embedder.NewLocal(cfg.Embedding.Dimensions), nil
	case config.EmbeddingOpenAI:
		return embedder.NewOpenAI(embedder.OpenAIConfig{
			APIKey:     os.Getenv(cfg.Embedding.APIKeyEnv),
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedding backend %q", domain.ErrConfig, cfg.Embedding.Backend)
	}
}

// openIndex opens the vector index backend. A corrupt local index is
// removed along with its manifest and recreated empty; the next reindex
// rebuilds it from the corpus.
func openIndex(ctx context.Context, cfg *config.Config, dimensions int) (store.Index, error) {
	switch cfg.Storage.Backend {
	case config.StorageSQLite:
		if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
		idx, err := store.OpenSQLite(cfg.IndexPath(), dimensions)
		if errors.Is(err, domain.ErrIndexCorrupt) {
			logger.Warn("index unusable, rebuilding from scratch", "err", err)
			if err := os.Remove(cfg.IndexPath()); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.Remove(cfg.ManifestPath()); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
			idx, err = store.OpenSQLite(cfg.IndexPath(), dimensions)
			if err != nil {
				return nil, err
			}
			return idx, nil
		}
		return idx, err
	case config.StorageQdrant:
		qc := cfg.Storage.Qdrant
		return store.OpenQdrant(ctx, store.QdrantConfig{
			URL:        qc.URL,
			APIKey:     os.Getenv(qc.APIKeyEnv),
			Collection: qc.Collection,
			Dimensions: dimensions,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrConfig, cfg.Storage.Backend)
	}
}

// requireIndexArtifact fails early with a hint when searching before any
// index has been built. Only meaningful for the local backend.
func requireIndexArtifact(cfg *config.Config) error {
	if cfg.Storage.Backend != config.StorageSQLite {
		return nil
	}
	if _, err := os.Stat(cfg.IndexPath()); os.IsNotExist(err) {
		return fmt.Errorf("index not found at %s\nRun 'coursenav index' first to build it", filepath.Clean(cfg.IndexPath()))
	}
	return nil
}
