package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"coursenav/internal/index"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := requireIndexArtifact(cfg); err != nil {
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

		chunks, err := idx.Count(cmd.Context())
		if err != nil {
			return err
		}
		manifest, err := index.LoadManifest(cfg.ManifestPath())
		if err != nil {
			return err
		}

		fmt.Printf("Documents:  %d\n", len(manifest.Documents))
		fmt.Printf("Chunks:     %d\n", chunks)
		fmt.Printf("Embedder:   %s\n", valueOr(manifest.Embedder, emb.ModelName()+" (not yet indexed)"))
		fmt.Printf("Storage:    %s\n", cfg.Storage.Backend)
		fmt.Printf("Corpus:     %s\n", cfg.DocsDir)
		return nil
	},
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
