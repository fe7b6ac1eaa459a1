package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jkaninda/zunguka/internal/config"
	"github.com/jkaninda/zunguka/internal/keypool"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show how many API keys are configured per provider",
	RunE:  runKeys,
}

func init() {
	keysCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	keysCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func runKeys(_ *cobra.Command, _ []string) error {
	logger := newLogger(verbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	defaultName := cfg.Providers.Default
	if defaultName == "" {
		defaultName = "gemini"
	}

	providers := []struct {
		name string
		keys []string
	}{
		{"gemini", cfg.Providers.Gemini.Keys()},
		{"openai", cfg.Providers.OpenAI.Keys()},
		{"anthropic", cfg.Providers.Anthropic.Keys()},
	}

	for _, p := range providers {
		// Run keys through a pool so blank entries are counted the same
		// way the client will see them.
		pool := keypool.New(logger)
		pool.Reset(p.keys)

		marker := ""
		if p.name == defaultName {
			marker = " (default)"
		}
		noun := "keys"
		if pool.Size() == 1 {
			noun = "key"
		}
		fmt.Printf("%-10s %d %s%s\n", p.name, pool.Size(), noun, marker)
	}

	if defaultName == "ollama" {
		fmt.Printf("%-10s no key required (default)\n", "ollama")
	}

	return nil
}
