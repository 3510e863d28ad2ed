// Package pricing implements the price source: a cache-backed lookup with a
// bounded timeout that degrades to a synthetic fallback walk instead of
// failing. Callers always get a quote; the Freshness field tells them how
// much to trust it.
package pricing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"riskcore/internal/domain"
	"riskcore/internal/obs"
	"riskcore/internal/ports"
)

// Config holds configuration for the price source.
type Config struct {
	Cache    ports.QuoteCache
	Fallback ports.FallbackPricer
	Logger   ports.Logger
	// TTL is the freshness window; cached quotes whose own timestamp is
	// older than this are served as STALE.
	TTL time.Duration
	// Timeout bounds a single cache round-trip so a slow cache degrades to
	// fallback instead of stalling the caller.
	Timeout time.Duration
}

// Source implements ports.PriceSource.
type Source struct {
	cache    ports.QuoteCache
	fallback ports.FallbackPricer
	logger   ports.Logger
	ttl      time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	lastKnown map[string]float64 // last real price served per symbol
}

// New creates a price source.
func New(cfg Config) (*Source, error) {
	if cfg.Cache == nil || cfg.Fallback == nil || cfg.Logger == nil {
		return nil, errors.New("cache, fallback and logger are required for price source")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Source{
		cache:     cfg.Cache,
		fallback:  cfg.Fallback,
		logger:    cfg.Logger,
		ttl:       ttl,
		timeout:   timeout,
		lastKnown: make(map[string]float64),
	}, nil
}

type cacheResult struct {
	price float64
	ts    time.Time
	err   error
}

// GetPrice returns the current quote for a symbol. It never returns an
// error: a cache miss, a cache failure or a timeout all degrade to a
// SYNTHETIC quote generated by the fallback walk.
func (s *Source) GetPrice(ctx context.Context, symbol string) domain.PriceQuote {
	symbol = strings.ToUpper(symbol)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The cache call runs in its own goroutine so a hung cache cannot hold
	// the caller past the timeout.
	resCh := make(chan cacheResult, 1)
	go func() {
		price, ts, err := s.cache.GetQuote(ctx, symbol)
		resCh <- cacheResult{price: price, ts: ts, err: err}
	}()

	var res cacheResult
	select {
	case res = <-resCh:
	case <-ctx.Done():
		res = cacheResult{err: ports.ErrTimeout}
	}

	now := time.Now()
	switch {
	case res.err == nil:
		freshness := domain.FreshnessLive
		if now.Sub(res.ts) > s.ttl {
			freshness = domain.FreshnessStale
		}
		s.rememberLast(symbol, res.price)
		obs.QuoteLookups.WithLabelValues(string(freshness)).Inc()
		return domain.PriceQuote{
			Symbol:    symbol,
			Price:     res.price,
			Timestamp: res.ts,
			Freshness: freshness,
		}

	case errors.Is(res.err, ports.ErrCacheMiss):
		// Expected after TTL expiry; fall through quietly.

	default:
		// Unavailability or timeout: degrade, but say so.
		obs.CacheUnavailable.Inc()
		s.logger.Warn(ctx, "quote cache degraded, using synthetic fallback", map[string]interface{}{
			"symbol": symbol,
			"error":  res.err.Error(),
		})
	}

	price := s.fallback.NextPrice(symbol, s.recallLast(symbol))
	obs.QuoteLookups.WithLabelValues(string(domain.FreshnessSynthetic)).Inc()
	return domain.PriceQuote{
		Symbol:    symbol,
		Price:     price,
		Timestamp: now,
		Freshness: domain.FreshnessSynthetic,
	}
}

func (s *Source) rememberLast(symbol string, price float64) {
	s.mu.Lock()
	s.lastKnown[symbol] = price
	s.mu.Unlock()
}

func (s *Source) recallLast(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastKnown[symbol]
}
