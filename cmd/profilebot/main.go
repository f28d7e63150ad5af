// Command profilebot is the entry point for the profile Q&A assistant.
// It provides a CLI interface (via Cobra), an interactive TUI chat, and an
// HTTP server exposing the same question-answering pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tebatto/profilebot/cmd/profilebot/commands"
)

func main() {
	// Load .env if present so local runs pick up provider keys.
	_ = godotenv.Load()

	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
