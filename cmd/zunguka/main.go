// Zunguka — a command-line AI client with round-robin API key rotation.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zunguka",
	Short: "Zunguka — a command-line AI client that rotates across multiple API keys.",
	Long: `Zunguka is a command-line client for Gemini, OpenAI, Anthropic, and Ollama.
Configure multiple API keys per provider and requests cycle through them
round-robin, spreading usage across free-tier quotas and riding out
per-key rate limits.`,
	RunE:          runChat, // Default to interactive chat.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(chatCmd, askCmd, keysCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
