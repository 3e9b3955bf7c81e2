// Package cli implements the memengine CLI commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "memengine",
	Short: "Memory ingestion and retrieval engine",
	Long:  "Ingests personal documents into categorized, embedded memory chunks and retrieves them by semantic similarity.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Config file path")
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
