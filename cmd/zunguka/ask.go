package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jkaninda/zunguka/internal/chat"
	"github.com/jkaninda/zunguka/internal/config"
	"github.com/jkaninda/zunguka/internal/llm"
)

// Exit codes for the ask command.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitNoAPIKey    = 2
	ExitRateLimited = 3
)

var (
	askMessage      string
	askSystemPrompt string
	askSessionID    string
	askTimeout      int
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Send a one-shot question and print the answer",
	Long: `Send a single message to the configured provider and print the response
to stdout. Diagnostics go to stderr, so the output is safe to pipe.

Examples:
  zunguka ask -m "explain the difference between a goroutine and a thread"
  zunguka ask -m "continue our discussion" --session 6f1c9a4e-...

Exit codes:
  0  success
  1  request failure
  2  no API key configured
  3  all keys rate limited`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askMessage, "message", "m", "", "message to send (required)")
	askCmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
	askCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	askCmd.Flags().StringVar(&askSystemPrompt, "system", "", "override the system prompt")
	askCmd.Flags().StringVar(&askSessionID, "session", "", "conversation ID for multi-turn context (requires history)")
	askCmd.Flags().IntVar(&askTimeout, "timeout", 300, "timeout in seconds")

	_ = askCmd.MarkFlagRequired("message")
}

func runAsk(_ *cobra.Command, _ []string) error {
	if askMessage == "" {
		return fmt.Errorf("message is required: use -m flag")
	}

	logger := newLogger(verbose)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sc, err := initShared(cfg, logger)
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(askTimeout)*time.Second)
	defer cancel()

	opts := []chat.Option{chat.WithSystemPrompt(askSystemPrompt)}
	if askSessionID != "" {
		convID, parseErr := uuid.Parse(askSessionID)
		if parseErr != nil {
			return fmt.Errorf("invalid session ID %q: %w", askSessionID, parseErr)
		}
		opts = append(opts, chat.WithConversationID(convID))
	}
	session := chat.New(sc.Provider, sc.Store, logger, opts...)

	resp, err := session.Send(ctx, askMessage)
	recordChatTurn(sc, err)
	if err != nil {
		sc.Cleanup()
		exitWithError(err)
	}

	fmt.Println(resp.Content)
	fmt.Fprintf(os.Stderr, "\n[conversation_id=%s tokens=%d]\n",
		session.ConversationID(),
		resp.Usage.InputTokens+resp.Usage.OutputTokens,
	)

	return nil
}

// exitWithError maps request errors to exit codes.
func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if errors.Is(err, llm.ErrNoAPIKey) {
		os.Exit(ExitNoAPIKey)
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) && apiErr.RateLimited() {
		os.Exit(ExitRateLimited)
	}

	os.Exit(ExitFailure)
}
