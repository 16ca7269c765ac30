package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"coursenav/internal/chunker"
	"coursenav/internal/domain"
	"coursenav/internal/extract"
	"coursenav/internal/index"
)

var flagFull bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the document index",
	Long: `Scans the documents directory and indexes new or modified files.
Unchanged documents are skipped; use --full to re-embed everything.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		emb, err := buildEmbedder(cfg)
		if err != nil {
			return err
		}
		idx, err := openIndex(cmd.Context(), cfg, emb.Dimensions())
		if err != nil {
			return err
		}
		defer idx.Close()

		ch, err := chunker.New(cfg.Chunking.Size, *cfg.Chunking.Overlap)
		if err != nil {
			return err
		}

		mgr := index.NewManager(index.ManagerConfig{
			Root:         cfg.DocsDir,
			ManifestPath: cfg.ManifestPath(),
			Chunker:      ch,
			Extractor:    extract.NewRegistry(),
			Embedder:     emb,
			Index:        idx,
			Logger:       logger,
		})

		fmt.Printf("Indexing %s...\n", cfg.DocsDir)
		start := time.Now()

		stats, err := mgr.Reindex(cmd.Context(), flagFull)
		if errors.Is(err, domain.ErrIndexCorrupt) {
			// An unreadable manifest means the incremental state is gone;
			// rebuild everything from the corpus.
			logger.Warn("manifest unusable, forcing full rebuild", "err", err)
			if err := os.Remove(cfg.ManifestPath()); err != nil && !os.IsNotExist(err) {
				return err
			}
			stats, err = mgr.Reindex(cmd.Context(), true)
		}
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Documents: %d total, %d indexed, %d skipped, %d removed, %d failed\n",
				stats.DocsTotal, stats.DocsIndexed, stats.DocsSkipped, stats.DocsRemoved, stats.DocsFailed)
			fmt.Printf("  Chunks:    %d\n", stats.Chunks)
		}
		return err
	},
}

func init() {
	indexCmd.Flags().BoolVar(&flagFull, "full", false, "re-embed every document, ignoring the manifest")
	rootCmd.AddCommand(indexCmd)
}
