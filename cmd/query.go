package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryTopK     int
	queryMinScore float64
)

var queryCmd = &cobra.Command{
	Use:   "query <workspace> <text>",
	Short: "Run a similarity query against a workspace's vector collection",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspace, text := args[0], args[1]

		d, err := buildDeps(cfg)
		if err != nil {
			return err
		}
		defer d.bridge.Close()

		ctx := context.Background()
		if err := d.index.Load(ctx); err != nil {
			return fmt.Errorf("loading vector index: %w", err)
		}

		vec, usedFallback, err := d.gateway.EmbedQuery(ctx, text)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		if usedFallback {
			fmt.Println("query: multimodal embedder unavailable, fell back to the text embedder")
		}

		results, err := d.index.PerformSimilaritySearch(ctx, workspace, vec, queryTopK, queryMinScore, nil)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		for i, r := range results {
			fmt.Printf("%d. [%.4f] %s\n    %s\n", i+1, r.Score, r.DocID, truncate(r.ContextText(), 160))
		}
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	queryCmd.Flags().IntVar(&queryTopK, "top", 5, "number of results to return")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "minimum cosine similarity (0 disables filtering)")
	rootCmd.AddCommand(queryCmd)
}
