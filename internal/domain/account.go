package domain

import "time"

// Account represents a trading account. The core reads it when validating
// opens and adjusts the balance when closes realize P&L; everything else
// (funding, settlement) happens outside.
type Account struct {
	ID      int64
	Balance float64
	// MaxRiskPerTrade is the largest fraction of the balance a single
	// position may put at risk, in (0, 1].
	MaxRiskPerTrade float64
	IsDemo          bool
	CreatedAt       time.Time
}

// Instrument is immutable reference data for a tradable symbol.
type Instrument struct {
	Symbol string
	// MinStopDistance is the minimum allowed distance between entry price
	// and stop loss, in price units.
	MinStopDistance float64
	// PointSize is the smallest price increment for the symbol.
	PointSize float64
}
