// Package keypool implements round-robin selection over a fixed set of API keys.
// Thread-safe. The pool never performs I/O and never returns an error — an
// empty pool is signalled through the second return value of Next.
package keypool

import (
	"log/slog"
	"strings"
	"sync"
)

// Pool hands out API keys in strict round-robin order, spreading requests
// across multiple rate-limited credentials. It is an explicitly constructed
// object: callers own the instance and pass it to whichever component issues
// outbound requests. Construct with New, load keys with Reset.
type Pool struct {
	mu     sync.Mutex
	keys   []string
	cursor int
	logger *slog.Logger
}

// New creates an empty pool. Next on an empty pool yields absence.
func New(logger *slog.Logger) *Pool {
	return &Pool{logger: logger}
}

// Reset replaces the pool contents with the given keys and rewinds the
// cursor to the first entry. Entries that are empty after trimming
// whitespace are dropped; order and duplicates are preserved. The previous
// pool is fully discarded — there is no partial update.
//
// Resetting to an empty pool is not an error, but it is logged at warning
// level because every subsequent request will fail for lack of a key.
func (p *Pool) Reset(keys []string) {
	filtered := make([]string, 0, len(keys))
	for _, k := range keys {
		if trimmed := strings.TrimSpace(k); trimmed != "" {
			filtered = append(filtered, trimmed)
		}
	}

	p.mu.Lock()
	p.keys = filtered
	p.cursor = 0
	p.mu.Unlock()

	if len(filtered) == 0 && p.logger != nil {
		p.logger.Warn("key pool is empty — subsequent requests will have no API key available")
	}
}

// Next returns the key at the cursor and advances the cursor by one,
// wrapping to the first entry after the last. For a pool of size N, N
// consecutive calls return each entry exactly once, in insertion order.
// Returns ("", false) when the pool is empty.
//
// The read-then-advance step is a single critical section so concurrent
// callers never observe the same key or skip one within a cycle.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return "", false
	}
	key := p.keys[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.keys)
	return key, true
}

// Size returns the number of usable keys currently in the pool.
// Informational only — callers must not branch on it to decide whether to
// call Next; absence is communicated by Next itself.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}
