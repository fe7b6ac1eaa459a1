package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jkaninda/zunguka/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAllow_Unlimited(t *testing.T) {
	l := NewLimiter(Config{})
	for i := 0; i < 100; i++ {
		if err := l.Allow("gemini"); err != nil {
			t.Fatalf("Allow() error = %v on call %d, want nil in unlimited mode", err, i)
		}
	}
}

func TestAllow_ConsumesBurst(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 3})

	for i := 0; i < 3; i++ {
		if err := l.Allow("gemini"); err != nil {
			t.Fatalf("Allow() call %d error = %v, want nil", i, err)
		}
	}
	if err := l.Allow("gemini"); !errors.Is(err, ErrThrottled) {
		t.Errorf("Allow() after burst = %v, want ErrThrottled", err)
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 1})

	if err := l.Allow("gemini"); err != nil {
		t.Fatalf("Allow(gemini) error = %v", err)
	}
	// Exhausting gemini's bucket must not affect openai's.
	if err := l.Allow("openai"); err != nil {
		t.Errorf("Allow(openai) error = %v, want nil", err)
	}
}

type stubProvider struct {
	called int
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) SendMessage(context.Context, *llm.Request) (*llm.Response, error) {
	s.called++
	return &llm.Response{Content: "ok"}, nil
}

func TestThrottledProvider_BlocksOverBudget(t *testing.T) {
	inner := &stubProvider{}
	limiter := NewLimiter(Config{RequestsPerMinute: 60, BurstSize: 2})
	p := NewThrottledProvider(inner, limiter, discardLogger())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := p.SendMessage(ctx, &llm.Request{}); err != nil {
			t.Fatalf("SendMessage() call %d error = %v", i, err)
		}
	}

	_, err := p.SendMessage(ctx, &llm.Request{})
	if !errors.Is(err, ErrThrottled) {
		t.Errorf("SendMessage() over budget = %v, want ErrThrottled", err)
	}
	if inner.called != 2 {
		t.Errorf("inner provider called %d times, want 2 (throttled call must not reach it)", inner.called)
	}
}
