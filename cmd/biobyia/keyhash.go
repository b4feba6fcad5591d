package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var keyhashCmd = &cobra.Command{
	Use:   "keyhash [api-key]",
	Short: "Print the bcrypt hash of an API key for api.key_hash",
	Args:  cobra.ExactArgs(1),
	// No configuration needed to hash a key.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runKeyhash,
}

func init() {
	rootCmd.AddCommand(keyhashCmd)
}

func runKeyhash(cmd *cobra.Command, args []string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash key: %w", err)
	}
	fmt.Println(string(hash))
	return nil
}
