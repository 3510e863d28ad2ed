// Package quotecache provides an in-process implementation of the quote
// cache port: per-key TTL, price:{SYMBOL} keys, lock-protected map. It
// stands in for an external cache; the port lets a Redis-backed adapter
// replace it without touching the price source.
package quotecache

import (
	"context"
	"strings"
	"sync"
	"time"

	"riskcore/internal/ports"
)

const keyPrefix = "price:"

type entry struct {
	price     float64
	ts        time.Time
	expiresAt time.Time
}

// Cache implements ports.QuoteCache in memory.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a cache with the given per-key TTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

func makeKey(symbol string) string {
	return keyPrefix + strings.ToUpper(symbol)
}

// GetQuote returns the cached price for a symbol, or ErrCacheMiss once the
// entry's TTL has elapsed.
func (c *Cache) GetQuote(ctx context.Context, symbol string) (float64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, ports.ErrCacheUnavailable
	}

	c.mu.RLock()
	e, ok := c.entries[makeKey(symbol)]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return 0, time.Time{}, ports.ErrCacheMiss
	}
	return e.price, e.ts, nil
}

// SetQuote stores a price under the symbol's key, resetting its TTL.
func (c *Cache) SetQuote(ctx context.Context, symbol string, price float64, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return ports.ErrCacheUnavailable
	}

	c.mu.Lock()
	c.entries[makeKey(symbol)] = entry{
		price:     price,
		ts:        ts,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

// Purge drops expired entries. The cache expires lazily on read; Purge
// exists so long-running processes with churning symbol sets do not grow
// without bound.
func (c *Cache) Purge() {
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
