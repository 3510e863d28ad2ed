package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyntheticWalk_SeedsFromBasePrice(t *testing.T) {
	w := NewSyntheticWalk(0.001, 1)

	price := w.NextPrice("EURUSD", 0)
	assert.InDelta(t, 1.1000, price, 1.1000*0.001*1.01)

	price = w.NextPrice("UNKNOWN", 0)
	assert.InDelta(t, 100.0, price, 100.0*0.001*1.01)
}

func TestSyntheticWalk_AnchorsOnLastKnown(t *testing.T) {
	w := NewSyntheticWalk(0.001, 1)

	price := w.NextPrice("BTCUSD", 50000)
	assert.InDelta(t, 50000, price, 50000*0.001*1.01)
}

func TestSyntheticWalk_DriftsFromOwnState(t *testing.T) {
	w := NewSyntheticWalk(0.001, 1)

	prev := w.NextPrice("EURUSD", 0)
	for i := 0; i < 100; i++ {
		next := w.NextPrice("EURUSD", 0)
		// Each step moves by at most volatility of the previous price.
		assert.LessOrEqual(t, math.Abs(next-prev), prev*0.001+1e-12)
		assert.Greater(t, next, 0.0)
		prev = next
	}
}

func TestSyntheticWalk_DeterministicForSeed(t *testing.T) {
	a := NewSyntheticWalk(0.001, 42)
	b := NewSyntheticWalk(0.001, 42)

	for i := 0; i < 10; i++ {
		assert.Equal(t, a.NextPrice("GBPUSD", 0), b.NextPrice("GBPUSD", 0))
	}
}

func TestSyntheticWalk_SymbolsAreIndependent(t *testing.T) {
	w := NewSyntheticWalk(0.001, 1)

	eur := w.NextPrice("EURUSD", 0)
	w.NextPrice("USDJPY", 0)

	// EURUSD state is untouched by the USDJPY step.
	next := w.NextPrice("EURUSD", 0)
	assert.LessOrEqual(t, math.Abs(next-eur), eur*0.001+1e-12)
}
