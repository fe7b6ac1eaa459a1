package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RetryConfig controls rate-limit retries. The detection condition is
// explicit configuration — a response status code — never inferred from
// error text.
type RetryConfig struct {
	MaxAttempts int   // Total attempts including the first. Must be >= 1.
	StatusCodes []int // Response codes that trigger a retry. Default: 429.
}

// DefaultRetryStatusCodes is the rate-limit status retried when no codes
// are configured.
var DefaultRetryStatusCodes = []int{429}

// RetryProvider wraps a Provider and retries requests that fail with a
// rate-limit status. The wrapped provider draws a fresh key from its pool
// on every call, so each retry goes out with the replacement credential.
// Callers bound MaxAttempts by the pool size — at most one try per entry —
// to avoid looping when every key is exhausted.
type RetryProvider struct {
	inner   Provider
	cfg     RetryConfig
	logger  *slog.Logger
	onRetry func() // optional metrics hook
}

// RetryOption configures the RetryProvider.
type RetryOption func(*RetryProvider)

// WithRetryNotify registers a callback invoked once per retry attempt.
func WithRetryNotify(fn func()) RetryOption {
	return func(r *RetryProvider) { r.onRetry = fn }
}

// NewRetryProvider wraps a provider with bounded rate-limit retries.
func NewRetryProvider(inner Provider, cfg RetryConfig, logger *slog.Logger, opts ...RetryOption) *RetryProvider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if len(cfg.StatusCodes) == 0 {
		cfg.StatusCodes = DefaultRetryStatusCodes
	}
	r := &RetryProvider{
		inner:  inner,
		cfg:    cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RetryProvider) Name() string { return r.inner.Name() }

// SendMessage forwards to the inner provider, retrying on configured
// rate-limit statuses until MaxAttempts is reached. Other errors —
// including ErrNoAPIKey — are returned immediately.
func (r *RetryProvider) SendMessage(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		resp, err := r.inner.SendMessage(ctx, req)
		if err == nil {
			if attempt > 1 {
				r.logger.InfoContext(ctx, "request succeeded after key rotation",
					slog.String("provider", r.inner.Name()),
					slog.Int("attempt", attempt),
				)
			}
			return resp, nil
		}
		if !r.shouldRetry(err) {
			return nil, err
		}
		lastErr = err
		if attempt < r.cfg.MaxAttempts {
			if r.onRetry != nil {
				r.onRetry()
			}
			r.logger.WarnContext(ctx, "rate limited, rotating to next key",
				slog.String("provider", r.inner.Name()),
				slog.Int("attempt", attempt),
				slog.Int("remaining", r.cfg.MaxAttempts-attempt),
			)
		}
	}
	return nil, fmt.Errorf("rate limited on all %d attempts: %w", r.cfg.MaxAttempts, lastErr)
}

func (r *RetryProvider) shouldRetry(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range r.cfg.StatusCodes {
		if apiErr.StatusCode == code {
			return true
		}
	}
	return false
}
