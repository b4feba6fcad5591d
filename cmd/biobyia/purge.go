package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"biobyia-go/pkg/vectorstore"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every vector in the configured index and namespace",
	Long: `Removes all vectors from the configured index and namespace. This is
irreversible, so the literal confirmation token SIM must be typed at the
prompt; there is no flag to bypass it.`,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	store, err := vectorstore.NewStore(cfg)
	if err != nil {
		return err
	}

	namespace := store.Namespace()
	if namespace == "" {
		namespace = "default"
	}
	fmt.Printf("This deletes EVERY vector from index %q, namespace %q.\n", store.IndexName(), namespace)
	fmt.Print("Type SIM to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if strings.TrimSpace(line) != "SIM" {
		fmt.Println("aborted, nothing deleted")
		return nil
	}

	if err := store.DeleteAll(context.Background()); err != nil {
		return fmt.Errorf("purge failed: %w", err)
	}
	fmt.Println("all vectors deleted")
	return nil
}
