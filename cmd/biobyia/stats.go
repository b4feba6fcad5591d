package main

import (
	"fmt"

	"biobyia-go/internal/dataset"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats [dataset.json]",
	Short: "Validate a corpus file and print its coverage statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ds, err := dataset.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	valid, warnings := ds.Validate()
	for _, warning := range warnings {
		fmt.Printf("warning: %s\n", warning)
	}

	stats := ds.Stats()
	fmt.Printf("entries:            %d\n", stats.TotalEntries)
	fmt.Printf("with question:      %d\n", stats.WithQuestion)
	fmt.Printf("with contexts:      %d\n", stats.WithContexts)
	fmt.Printf("with answer:        %d\n", stats.WithAnswer)
	fmt.Printf("avg contexts/entry: %.2f\n", stats.AvgContextsPerEntry)
	fmt.Printf("avg answer length:  %.0f chars\n", stats.AvgAnswerLength)
	if valid {
		fmt.Println("dataset structure: ok")
	}
	return nil
}
