package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"coursenav/internal/retriever"
)

var flagTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the most relevant document chunks for a query",
	Args:  cobra.MinimumNArgs(1),
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

		topK := flagTopK
		if topK == 0 {
			topK = cfg.Retrieval.MaxResults
		}
		r := retriever.New(emb, idx, time.Duration(cfg.Retrieval.QueryTimeoutSecs)*time.Second)

		query := strings.Join(args, " ")
		results, err := r.Retrieve(cmd.Context(), query, topK, cfg.Retrieval.SimilarityFloor)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matching documents.")
			return nil
		}

		for i, res := range results {
			fmt.Printf("%d. %s (chunk %d, score %.3f)\n", i+1, res.DocumentID, res.Index, res.Score)
			fmt.Println(indent(strings.TrimSpace(res.Text)))
			fmt.Println()
		}
		return nil
	},
}

func indent(s string) string {
	return "   " + strings.ReplaceAll(s, "\n", "\n   ")
}

func init() {
	searchCmd.Flags().IntVar(&flagTopK, "k", 0, "number of chunks to return (default from config)")
	rootCmd.AddCommand(searchCmd)
}
