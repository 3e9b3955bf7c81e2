// Package main is the memengine CLI entry point.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/daybook-ai/memengine/internal/cli"
)

func main() {
	// Best-effort; a missing .env file is fine.
	_ = godotenv.Load()

	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
