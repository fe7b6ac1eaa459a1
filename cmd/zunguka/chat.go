package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jkaninda/zunguka/internal/chat"
	"github.com/jkaninda/zunguka/internal/config"
)

var (
	chatSystemPrompt string
	chatSessionID    string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	// Register flags on both root and chat so that
	// `zunguka --config path` and `zunguka chat --config path` both work.
	for _, cmd := range []*cobra.Command{rootCmd, chatCmd} {
		cmd.Flags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to config file")
		cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
		cmd.Flags().StringVar(&chatSystemPrompt, "system", "", "override the system prompt")
		cmd.Flags().StringVar(&chatSessionID, "session", "", "conversation ID to resume (requires history)")
	}
}

// runChat starts the interactive REPL.
func runChat(_ *cobra.Command, _ []string) error {
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

	// Signal-aware context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []chat.Option{
		chat.WithSystemPrompt(chatSystemPrompt),
		chat.WithMaxHistory(cfg.History.MaxHistory()),
	}
	if chatSessionID != "" {
		convID, err := uuid.Parse(chatSessionID)
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", chatSessionID, err)
		}
		opts = append(opts, chat.WithConversationID(convID))
	}
	session := chat.New(sc.Provider, sc.Store, logger, opts...)

	return runREPL(ctx, session, sc, logger)
}

// runREPL reads user input line by line until ctx is cancelled or the
// user types "exit".
func runREPL(ctx context.Context, session *chat.Session, sc *SharedComponents, logger *slog.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Zunguka — chat with an AI model across multiple API keys")
	fmt.Printf("Provider: %s. Type your message (or \"exit\" to quit).\n", sc.Provider.Name())
	fmt.Println()

	for {
		fmt.Print("zunguka> ")

		// Check for context cancellation between prompts.
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down.")
			return nil
		default:
		}

		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("Goodbye.")
			return nil
		}

		resp, err := session.Send(ctx, line)
		recordChatTurn(sc, err)
		if err != nil {
			logger.ErrorContext(ctx, "chat turn failed",
				slog.String("conversation_id", session.ConversationID().String()),
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		fmt.Println()
		fmt.Println(resp.Content)
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	return nil
}
