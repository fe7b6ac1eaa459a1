package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jkaninda/zunguka/internal/keypool"
	"github.com/jkaninda/zunguka/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func singleKeyPool(key string) *keypool.Pool {
	p := keypool.New(discardLogger())
	p.Reset([]string{key})
	return p
}

func okResponse(text string) apiResponse {
	return apiResponse{
		Candidates: []apiCandidate{{
			Content:      apiContent{Role: "model", Parts: []apiPart{{Text: text}}},
			FinishReason: "STOP",
		}},
		UsageMetadata: &apiUsage{PromptTokenCount: 10, CandidatesTokenCount: 5},
	}
}

func TestSendMessage_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected x-goog-api-key test-key, got %q", r.Header.Get("x-goog-api-key"))
		}
		if r.URL.Path != "/v1beta/models/gemini-2.0-flash:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req apiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.SystemInstruction == nil {
			t.Fatal("expected system instruction")
		}
		if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
			t.Fatalf("expected 1 user content, got %+v", req.Contents)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("Hello!"))
	}))
	defer srv.Close()

	client := NewClient(singleKeyPool("test-key"), "gemini-2.0-flash", discardLogger(), WithBaseURL(srv.URL))
	resp, err := client.SendMessage(context.Background(), &llm.Request{
		SystemPrompt: "You are helpful.",
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("expected content Hello!, got %q", resp.Content)
	}
	if resp.StopReason != "end_turn" {
		t.Errorf("expected stop reason end_turn, got %q", resp.StopReason)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestSendMessage_RotatesKeys(t *testing.T) {
	var seenKeys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenKeys = append(seenKeys, r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(okResponse("ok"))
	}))
	defer srv.Close()

	pool := keypool.New(discardLogger())
	pool.Reset([]string{"key-A", "key-B", "key-C"})

	client := NewClient(pool, "gemini-2.0-flash", discardLogger(), WithBaseURL(srv.URL))
	req := &llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}}}

	for i := 0; i < 4; i++ {
		if _, err := client.SendMessage(context.Background(), req); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
	}

	want := []string{"key-A", "key-B", "key-C", "key-A"}
	for i, w := range want {
		if seenKeys[i] != w {
			t.Errorf("request %d: expected key %q, got %q", i+1, w, seenKeys[i])
		}
	}
}

func TestSendMessage_EmptyPool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent without a key")
	}))
	defer srv.Close()

	pool := keypool.New(discardLogger())
	client := NewClient(pool, "gemini-2.0-flash", discardLogger(), WithBaseURL(srv.URL))

	_, err := client.SendMessage(context.Background(), &llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})
	if !errors.Is(err, llm.ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	client := NewClient(singleKeyPool("key"), "gemini-2.0-flash", discardLogger(), WithBaseURL(srv.URL))
	_, err := client.SendMessage(context.Background(), &llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Hi"}},
	})

	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.RateLimited() {
		t.Errorf("expected rate-limited error, got status %d", apiErr.StatusCode)
	}
}

func TestNormalizeFinishReason(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"STOP", "end_turn"},
		{"MAX_TOKENS", "max_tokens"},
		{"SAFETY", "SAFETY"},
	}
	for _, tt := range tests {
		if got := normalizeFinishReason(tt.reason); got != tt.want {
			t.Errorf("normalizeFinishReason(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}
