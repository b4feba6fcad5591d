// Package main is the entry point for the biobyia command line tool.
package main

import (
	"os"

	"biobyia-go/pkg/log"
)

func main() {
	defer log.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
