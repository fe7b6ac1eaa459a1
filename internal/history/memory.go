package history

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jkaninda/zunguka/internal/llm"
)

// InMemoryStore implements Store without persistence.
// History is lost on exit. Used when no history backend is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	history map[uuid.UUID][]llm.Message
}

// NewInMemoryStore creates an ephemeral conversation store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		history: make(map[uuid.UUID][]llm.Message),
	}
}

func (s *InMemoryStore) GetOrCreateConversation(_ context.Context, convID uuid.UUID) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.history[convID]; !ok {
		s.history[convID] = nil
	}
	return convID, nil
}

func (s *InMemoryStore) AppendMessages(_ context.Context, convID uuid.UUID, msgs []llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[convID] = append(s.history[convID], msgs...)
	return nil
}

func (s *InMemoryStore) LoadHistory(_ context.Context, convID uuid.UUID, maxMessages int) ([]llm.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hist := s.history[convID]
	if maxMessages > 0 && len(hist) > maxMessages {
		hist = hist[len(hist)-maxMessages:]
	}

	cp := make([]llm.Message, len(hist))
	copy(cp, hist)
	return cp, nil
}

func (s *InMemoryStore) DeleteConversation(_ context.Context, convID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, convID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)
