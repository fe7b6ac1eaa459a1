// Package history defines conversation persistence for the chat session.
// Two implementations exist: an ephemeral in-memory store and a SQLite
// store in the sqlite subpackage.
package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/jkaninda/zunguka/internal/llm"
)

// Store persists conversation history.
type Store interface {
	// GetOrCreateConversation returns an existing conversation or creates a new one.
	GetOrCreateConversation(ctx context.Context, convID uuid.UUID) (uuid.UUID, error)

	// AppendMessages atomically appends one or more messages to a conversation.
	AppendMessages(ctx context.Context, convID uuid.UUID, msgs []llm.Message) error

	// LoadHistory returns the most recent messages for a conversation,
	// up to maxMessages, ordered oldest-first.
	LoadHistory(ctx context.Context, convID uuid.UUID, maxMessages int) ([]llm.Message, error)

	// DeleteConversation removes all messages and the conversation record.
	DeleteConversation(ctx context.Context, convID uuid.UUID) error

	// Close releases any resources held by the store.
	Close() error
}

// DefaultMaxMessages is the default cap on messages loaded per conversation.
const DefaultMaxMessages = 100
