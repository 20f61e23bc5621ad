package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"docchat/internal/usecase"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the index",
	Long: `Embed a query and print the chunks retrieval would hand to the model.
Useful for checking what the chat command grounds its answers on.

Examples:
  docchat query -q "how do agents use tools"
  docchat query -q "memory" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	ctx := cmd.Context()
	index, closeIndex, err := newIndex(ctx, cfg, embedder.Dimension())
	if err != nil {
		return err
	}
	defer closeIndex()

	topK := cfg.Retrieval.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	retriever := usecase.NewRetriever(embedder, index, topK)
	results, err := retriever.Retrieve(ctx, queryText)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (score: %.2f) ---\n", i+1, r.Source, r.Score)
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
