package domain

// Side represents the direction of a position (BUY or SELL).
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the opposing side (BUY -> SELL, SELL -> BUY).
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// IsValid reports whether the side is one of the two known values.
func (s Side) IsValid() bool {
	return s == Buy || s == Sell
}

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen    PositionStatus = "OPEN"
	StatusPartial PositionStatus = "PARTIAL" // partially closed, remainder still live
	StatusClosed  PositionStatus = "CLOSED"
)

// CloseReason indicates why a position (or part of it) was closed.
type CloseReason string

const (
	CloseReasonStopLoss   CloseReason = "SL"
	CloseReasonTakeProfit CloseReason = "TP"
	CloseReasonManual     CloseReason = "MANUAL"
)

// Freshness classifies where a price quote came from.
type Freshness string

const (
	// FreshnessLive means the quote came from a cache hit within TTL.
	FreshnessLive Freshness = "LIVE"
	// FreshnessStale means the quote's own timestamp was already older than
	// the cache TTL when it was ingested from the feed.
	FreshnessStale Freshness = "STALE"
	// FreshnessSynthetic means the quote was generated by the fallback walk
	// because the cache had no usable entry.
	FreshnessSynthetic Freshness = "SYNTHETIC"
)
