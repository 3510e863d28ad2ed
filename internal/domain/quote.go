package domain

import "time"

// PriceQuote is an ephemeral price observation for a symbol. It is produced
// by the price source and never persisted.
type PriceQuote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
	Freshness Freshness
}

// IsSynthetic reports whether the quote came from the fallback generator
// rather than a real feed observation.
func (q PriceQuote) IsSynthetic() bool {
	return q.Freshness == FreshnessSynthetic
}
