package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"biobyia-go/internal/service"

	"github.com/spf13/cobra"
)

var (
	queryTopK     int
	queryMinScore float64
	queryFilters  []string
	queryJSON     bool
	queryContext  bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Similarity search over the ingested corpus",
	Long: `Embeds the query text and returns the closest chunks from the vector
store, ordered by descending similarity score. Metadata filters use
key=value pairs and match by equality.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().Float64Var(&queryMinScore, "min-score", 0, "drop results below this score")
	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil, "metadata filter, key=value (repeatable)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	queryCmd.Flags().BoolVar(&queryContext, "context", false, "output a prompt-ready context block instead of a result list")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	embedder, store, err := buildClients()
	if err != nil {
		return err
	}
	queryService := service.NewQueryService(embedder, store, cfg.Query)

	results, err := queryService.Query(context.Background(), args[0], queryTopK, filters)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if queryMinScore > 0 {
		results = queryService.FilterByScore(results, queryMinScore)
	}

	if queryJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}
	if queryContext {
		fmt.Println(queryService.FormatContext(results))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for i, result := range results {
		fmt.Printf("%d. [%.3f] article %s, chunk %d\n", i+1, result.Score, result.ArticleID, result.ChunkIndex)
		fmt.Printf("   %s\n", truncate(result.Text, 200))
	}
	return nil
}

// parseFilters turns repeated key=value flags into the flat filter map the
// query service expects.
func parseFilters(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q, expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
