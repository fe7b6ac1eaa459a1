// Package llm defines the provider-agnostic interface for LLM interactions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Provider is the abstraction over any LLM backend (Gemini, OpenAI, Anthropic).
type Provider interface {
	// SendMessage sends a conversation to the LLM and returns its response.
	SendMessage(ctx context.Context, req *Request) (*Response, error)
	// Name returns the provider identifier (e.g. "gemini").
	Name() string
}

// ErrNoAPIKey is returned by a provider when its key pool has no usable
// entries. The pool itself never errors; converting absence into a
// descriptive failure is the provider's job.
var ErrNoAPIKey = errors.New("no API key available: configure at least one key")

// APIError is a non-2xx response from an LLM API. The status code is kept
// so the retry layer can recognize rate-limit responses without parsing
// error text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// RateLimited reports whether the error is an HTTP 429.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Request represents a full conversation sent to the LLM.
type Request struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
}

// Message is a single turn in the conversation.
type Message struct {
	Role    Role
	Content string
}

// Role identifies who sent a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response is what the LLM returns.
type Response struct {
	Content    string
	Usage      Usage
	StopReason string // "end_turn", "max_tokens"
}

// Usage tracks token consumption for cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
