// Package ratelimit implements a client-side token bucket throttle.
// Thread-safe. No background goroutines — tokens are refilled lazily on each Allow call.
//
// Rotating across keys spreads load but does not cap it; the throttle keeps
// the total request rate under the combined per-key quota so the remote API
// returns fewer 429s in the first place.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jkaninda/zunguka/internal/llm"
)

// ErrThrottled is returned when the local token bucket is empty.
var ErrThrottled = errors.New("local rate limit exceeded, try again shortly")

// Config configures the token bucket throttle.
type Config struct {
	RequestsPerMinute int // Tokens added per minute. 0 = unlimited (Allow always succeeds).
	BurstSize         int // Maximum tokens in bucket. 0 = defaults to RequestsPerMinute.
}

// Limiter is a token bucket throttle keyed by an arbitrary string,
// typically the provider name. Each key gets an independent bucket.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64 // max bucket capacity
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// NewLimiter creates a throttle with the given configuration.
// If RequestsPerMinute is 0, Allow always succeeds (unlimited).
func NewLimiter(cfg Config) *Limiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	if burst <= 0 {
		burst = 1 // safety floor
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(cfg.RequestsPerMinute) / 60.0,
		burst:   float64(burst),
	}
}

// Allow checks whether tokens remain for the given key.
// Consumes one token on success. Returns ErrThrottled if the bucket is empty.
func (l *Limiter) Allow(key string) error {
	// Unlimited mode.
	if l.rate <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		// First request: start with a full bucket.
		b = &bucket{tokens: l.burst, lastFill: now}
		l.buckets[key] = b
	}

	// Refill tokens based on elapsed time.
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * l.rate
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	b.lastFill = now

	// Try to consume one token.
	if b.tokens < 1 {
		return ErrThrottled
	}
	b.tokens--
	return nil
}

// ThrottledProvider wraps an llm.Provider, rejecting requests that exceed
// the local rate budget before they reach the network.
type ThrottledProvider struct {
	inner   llm.Provider
	limiter *Limiter
	logger  *slog.Logger
}

// NewThrottledProvider wraps a provider with a local request throttle.
func NewThrottledProvider(inner llm.Provider, limiter *Limiter, logger *slog.Logger) *ThrottledProvider {
	return &ThrottledProvider{
		inner:   inner,
		limiter: limiter,
		logger:  logger,
	}
}

func (p *ThrottledProvider) Name() string { return p.inner.Name() }

func (p *ThrottledProvider) SendMessage(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if err := p.limiter.Allow(p.inner.Name()); err != nil {
		p.logger.WarnContext(ctx, "request throttled locally",
			slog.String("provider", p.inner.Name()),
		)
		return nil, fmt.Errorf("provider %s: %w", p.inner.Name(), err)
	}
	return p.inner.SendMessage(ctx, req)
}

var _ llm.Provider = (*ThrottledProvider)(nil)
