package pricing

import (
	"math/rand"
	"strings"
	"sync"
)

// Reference prices used to seed the walk for symbols that have never had a
// real quote.
var basePrices = map[string]float64{
	// Forex
	"EURUSD": 1.1000,
	"GBPUSD": 1.2700,
	"USDJPY": 150.00,
	"AUDUSD": 0.6500,
	"USDCAD": 1.3500,
	"USDCHF": 0.8800,
	"NZDUSD": 0.6000,
	// Crypto
	"BTCUSD": 45000.00,
	"ETHUSD": 2500.00,
}

const defaultBasePrice = 100.00

// SyntheticWalk generates fallback prices as a small random walk from the
// last known price of each symbol. It keeps its own per-symbol state so the
// prices it emits while the cache is down move plausibly instead of
// jumping, which keeps SL/TP monitoring continuous.
type SyntheticWalk struct {
	mu         sync.Mutex
	last       map[string]float64
	volatility float64 // per-tick move as a fraction of price
	rng        *rand.Rand
}

// NewSyntheticWalk creates a walk generator. volatility is the maximum
// per-tick move as a fraction of the current price; 0 uses a default of
// 0.001 (0.1%).
func NewSyntheticWalk(volatility float64, seed int64) *SyntheticWalk {
	if volatility <= 0 {
		volatility = 0.001
	}
	return &SyntheticWalk{
		last:       make(map[string]float64),
		volatility: volatility,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// NextPrice returns the next synthetic price for the symbol. lastKnown, when
// non-zero, re-seeds the walk with the most recent real price so the walk
// resumes from reality rather than from its own drift.
func (w *SyntheticWalk) NextPrice(symbol string, lastKnown float64) float64 {
	symbol = strings.ToUpper(symbol)

	w.mu.Lock()
	defer w.mu.Unlock()

	prev := lastKnown
	if prev <= 0 {
		prev = w.last[symbol]
	}
	if prev <= 0 {
		prev = basePrices[symbol]
	}
	if prev <= 0 {
		prev = defaultBasePrice
	}

	// Random walk: move up or down by up to volatility of the price.
	direction := 1.0
	if w.rng.Float64() < 0.5 {
		direction = -1.0
	}
	tick := w.volatility * prev * (0.1 + 0.9*w.rng.Float64())
	next := prev + direction*tick
	if next <= 0 {
		next = prev * 0.99
	}

	w.last[symbol] = next
	return next
}
