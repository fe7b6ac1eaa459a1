// Package chat runs a conversation between the user and an LLM provider,
// with optional persistent history.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/zunguka/internal/history"
	"github.com/jkaninda/zunguka/internal/llm"
)

// DefaultSystemPrompt is used when no system prompt is configured.
const DefaultSystemPrompt = "You are a helpful assistant. Answer clearly and concisely."

// Session holds the state of one conversation.
type Session struct {
	provider     llm.Provider
	store        history.Store
	convID       uuid.UUID
	systemPrompt string
	maxHistory   int
	logger       *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithSystemPrompt overrides the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) {
		if prompt != "" {
			s.systemPrompt = prompt
		}
	}
}

// WithMaxHistory caps the number of history messages sent per request.
func WithMaxHistory(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxHistory = n
		}
	}
}

// WithConversationID resumes an existing conversation.
func WithConversationID(id uuid.UUID) Option {
	return func(s *Session) { s.convID = id }
}

// New creates a Session. store may be nil for stateless one-shot use.
func New(provider llm.Provider, store history.Store, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		provider:     provider,
		store:        store,
		convID:       uuid.New(),
		systemPrompt: DefaultSystemPrompt,
		maxHistory:   history.DefaultMaxMessages,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConversationID returns the session's conversation identifier.
func (s *Session) ConversationID() uuid.UUID { return s.convID }

// Send submits the user's message along with prior history and returns
// the assistant's reply. Both turns are persisted when a store is configured.
func (s *Session) Send(ctx context.Context, text string) (*llm.Response, error) {
	var msgs []llm.Message
	persistent := s.store != nil

	if persistent {
		convID, err := s.store.GetOrCreateConversation(ctx, s.convID)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to load conversation, falling back to ephemeral",
				slog.String("error", err.Error()),
			)
			persistent = false
		} else {
			s.convID = convID
			msgs, err = s.store.LoadHistory(ctx, convID, s.maxHistory)
			if err != nil {
				s.logger.ErrorContext(ctx, "failed to load history, falling back to ephemeral",
					slog.String("error", err.Error()),
				)
				persistent = false
				msgs = nil
			}
		}
	}

	userMsg := llm.Message{Role: llm.RoleUser, Content: text}
	msgs = append(msgs, userMsg)
	msgs = truncateHistory(msgs, s.maxHistory)

	resp, err := s.provider.SendMessage(ctx, &llm.Request{
		SystemPrompt: s.systemPrompt,
		Messages:     msgs,
	})
	if err != nil {
		if persistent {
			s.persist(ctx, []llm.Message{userMsg})
		}
		return nil, fmt.Errorf("llm request failed: %w", err)
	}

	s.logger.DebugContext(ctx, "chat turn completed",
		slog.String("conversation_id", s.convID.String()),
		slog.String("provider", s.provider.Name()),
		slog.Int("input_tokens", resp.Usage.InputTokens),
		slog.Int("output_tokens", resp.Usage.OutputTokens),
	)

	if persistent {
		s.persist(ctx, []llm.Message{
			userMsg,
			{Role: llm.RoleAssistant, Content: resp.Content},
		})
	}

	return resp, nil
}

// persist saves new messages to the history store (non-fatal on error).
func (s *Session) persist(ctx context.Context, msgs []llm.Message) {
	if err := s.store.AppendMessages(ctx, s.convID, msgs); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist conversation messages",
			slog.String("conversation_id", s.convID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// truncateHistory keeps the last max messages. Ensures the first message
// has role "user" to avoid LLM protocol violations.
func truncateHistory(msgs []llm.Message, max int) []llm.Message {
	if max <= 0 {
		max = history.DefaultMaxMessages
	}
	if len(msgs) <= max {
		return msgs
	}
	truncated := msgs[len(msgs)-max:]
	if len(truncated) > 0 && truncated[0].Role == llm.RoleAssistant {
		truncated = truncated[1:]
	}
	return truncated
}
