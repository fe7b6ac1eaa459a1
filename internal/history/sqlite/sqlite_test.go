package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/zunguka/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(Config{Path: path}, discardLogger())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetOrCreateConversation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	convID := uuid.New()

	got, err := store.GetOrCreateConversation(ctx, convID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	if got != convID {
		t.Errorf("conversation ID = %v, want %v", got, convID)
	}

	// Second call returns the same conversation.
	again, err := store.GetOrCreateConversation(ctx, convID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation() second call error = %v", err)
	}
	if again != convID {
		t.Errorf("second call ID = %v, want %v", again, convID)
	}
}

func TestAppendAndLoadHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	convID := uuid.New()

	if _, err := store.GetOrCreateConversation(ctx, convID); err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	first := []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi there"},
	}
	if err := store.AppendMessages(ctx, convID, first); err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}

	second := []llm.Message{
		{Role: llm.RoleUser, Content: "how are you"},
		{Role: llm.RoleAssistant, Content: "fine"},
	}
	if err := store.AppendMessages(ctx, convID, second); err != nil {
		t.Fatalf("AppendMessages() second batch error = %v", err)
	}

	msgs, err := store.LoadHistory(ctx, convID, 10)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("LoadHistory() returned %d messages, want 4", len(msgs))
	}

	want := append(first, second...)
	for i, msg := range msgs {
		if msg.Role != want[i].Role || msg.Content != want[i].Content {
			t.Errorf("message[%d] = {%s, %q}, want {%s, %q}", i, msg.Role, msg.Content, want[i].Role, want[i].Content)
		}
	}
}

func TestLoadHistory_RespectsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	convID := uuid.New()

	if _, err := store.GetOrCreateConversation(ctx, convID); err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	for i := 0; i < 6; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		err := store.AppendMessages(ctx, convID, []llm.Message{{Role: role, Content: string(rune('a' + i))}})
		if err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}
	}

	msgs, err := store.LoadHistory(ctx, convID, 3)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("LoadHistory() returned %d messages, want 3", len(msgs))
	}

	// Most recent three, oldest-first.
	want := []string{"d", "e", "f"}
	for i, msg := range msgs {
		if msg.Content != want[i] {
			t.Errorf("message[%d].Content = %q, want %q", i, msg.Content, want[i])
		}
	}
}

func TestLoadHistory_EmptyConversation(t *testing.T) {
	store := openTestStore(t)

	msgs, err := store.LoadHistory(context.Background(), uuid.New(), 10)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("LoadHistory() returned %d messages, want 0", len(msgs))
	}
}

func TestDeleteConversation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	convID := uuid.New()

	if _, err := store.GetOrCreateConversation(ctx, convID); err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}
	err := store.AppendMessages(ctx, convID, []llm.Message{{Role: llm.RoleUser, Content: "hello"}})
	if err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}

	if err := store.DeleteConversation(ctx, convID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}

	msgs, err := store.LoadHistory(ctx, convID, 10)
	if err != nil {
		t.Fatalf("LoadHistory() after delete error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("LoadHistory() after delete returned %d messages, want 0", len(msgs))
	}
}
