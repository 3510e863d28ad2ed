package ports

import (
	"context"
	"time"

	"riskcore/internal/domain"
)

// PriceSource supplies the current price for a symbol. It never fails:
// when the cache cannot serve, it degrades to a synthetic fallback quote
// and the caller learns about it through the quote's Freshness.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) domain.PriceQuote
}

// QuoteCache is a key-value cache with per-key TTL holding the most recent
// feed price per symbol. Implementations must report unavailability with
// ErrCacheUnavailable rather than hang, and expiry with ErrCacheMiss.
type QuoteCache interface {
	// GetQuote returns the cached price and its ingest timestamp.
	GetQuote(ctx context.Context, symbol string) (price float64, ts time.Time, err error)
	// SetQuote stores a price under the symbol's key with the cache TTL.
	SetQuote(ctx context.Context, symbol string, price float64, ts time.Time) error
}

// PriceFeed is an upstream source of real market prices used to warm the
// quote cache. Implementations wrap an exchange or broker API.
type PriceFeed interface {
	// GetTickerPrice retrieves the last traded price for a symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}

// FallbackPricer generates a synthetic price when no cached quote is
// usable. Implementations keep their own per-symbol state so consecutive
// fallback quotes form a plausible walk instead of jumping around.
type FallbackPricer interface {
	// NextPrice returns a synthetic price for the symbol, seeded from the
	// last known price when one is supplied (0 means unknown).
	NextPrice(symbol string, lastKnown float64) float64
}
