package history

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/jkaninda/zunguka/internal/llm"
)

func TestInMemoryStore_AppendAndLoad(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	convID := uuid.New()

	if _, err := store.GetOrCreateConversation(ctx, convID); err != nil {
		t.Fatalf("GetOrCreateConversation() error = %v", err)
	}

	msgs := []llm.Message{
		{Role: llm.RoleUser, Content: "hello"},
		{Role: llm.RoleAssistant, Content: "hi"},
	}
	if err := store.AppendMessages(ctx, convID, msgs); err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}

	got, err := store.LoadHistory(ctx, convID, 10)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadHistory() returned %d messages, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi" {
		t.Errorf("history out of order: %+v", got)
	}
}

func TestInMemoryStore_LoadRespectsLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	convID := uuid.New()

	for _, content := range []string{"a", "b", "c", "d"} {
		err := store.AppendMessages(ctx, convID, []llm.Message{{Role: llm.RoleUser, Content: content}})
		if err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}
	}

	got, err := store.LoadHistory(ctx, convID, 2)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadHistory() returned %d messages, want 2", len(got))
	}
	if got[0].Content != "c" || got[1].Content != "d" {
		t.Errorf("expected most recent messages oldest-first, got %+v", got)
	}
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	convID := uuid.New()

	err := store.AppendMessages(ctx, convID, []llm.Message{{Role: llm.RoleUser, Content: "x"}})
	if err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}
	if err := store.DeleteConversation(ctx, convID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}

	got, err := store.LoadHistory(ctx, convID, 10)
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadHistory() after delete returned %d messages, want 0", len(got))
	}
}
