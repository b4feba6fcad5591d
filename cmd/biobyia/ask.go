package main

import (
	"context"
	"fmt"
	"os"

	"biobyia-go/internal/service"
	"biobyia-go/pkg/llm"

	"github.com/spf13/cobra"
)

var (
	askTopK     int
	askMinScore float64
	askFilters  []string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with the chat model grounded on retrieved chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().Float64Var(&askMinScore, "min-score", 0, "drop retrieved chunks below this score")
	askCmd.Flags().StringArrayVar(&askFilters, "filter", nil, "metadata filter, key=value (repeatable)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(askFilters)
	if err != nil {
		return err
	}

	embedder, store, err := buildClients()
	if err != nil {
		return err
	}
	queryService := service.NewQueryService(embedder, store, cfg.Query)
	answerService := service.NewAnswerService(queryService, llm.NewClient(cfg.LLM))

	// Stream the answer chunks straight to stdout as they arrive.
	writer := llm.WriterFunc(func(_ int, data []byte) error {
		_, werr := os.Stdout.Write(data)
		return werr
	})

	opts := service.AskOptions{TopK: askTopK, MinScore: askMinScore, Filters: filters}
	result, err := answerService.Ask(context.Background(), args[0], opts, writer)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	fmt.Println()
	if len(result.Articles) > 0 {
		fmt.Println("\nSources:")
		for _, articleID := range result.Articles {
			fmt.Printf("  - article %s\n", articleID)
		}
	}
	return nil
}
