package domain

import "time"

// Position represents a trading position held by an account.
type Position struct {
	ID         int64   // Unique identifier for the position (usually from DB)
	AccountID  int64   // Owning account
	Symbol     string  // Instrument symbol (e.g., "EURUSD")
	Side       Side    // BUY or SELL
	EntryPrice float64 // Price at which the position was entered
	StopLoss   float64 // Mandatory protective price level, always set
	TakeProfit float64 // Optional profit target (0 if not set)
	Size       float64 // Original position size in units of the instrument
	// RemainingSize tracks how much of the position is still live after
	// partial closes. Equals Size while fully open, 0 once closed.
	RemainingSize float64
	RiskFraction  float64        // Fraction of balance at risk at open time
	Status        PositionStatus // OPEN, PARTIAL or CLOSED
	// HedgeDisabled records the hedge policy that applied when the position
	// was opened. Immutable afterwards so that a later policy change never
	// rewrites history.
	HedgeDisabled bool
	UnrealizedPNL float64     // Mark-to-market P&L, maintained by the refresh task
	PNL           float64     // Realized P&L accumulated across closes
	ClosePrice    float64     // Price of the final close (0 while open)
	CloseReason   CloseReason // Why the position was closed (empty while open)
	OpenedAt      time.Time
	ClosedAt      time.Time // Zero value while open
}

// IsOpen reports whether the position still has live exposure.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen || p.Status == StatusPartial
}

// HasTakeProfit reports whether a take-profit level is set.
func (p *Position) HasTakeProfit() bool {
	return p.TakeProfit > 0
}

// LiveSize returns the size still exposed to the market.
func (p *Position) LiveSize() float64 {
	if p.Status == StatusClosed {
		return 0
	}
	if p.RemainingSize > 0 {
		return p.RemainingSize
	}
	return p.Size
}

// OrderRequest is a request to open a new position. It carries everything
// the validator needs; account and instrument state are loaded separately.
type OrderRequest struct {
	AccountID  int64
	Symbol     string
	Side       Side
	EntryPrice float64
	StopLoss   float64 // 0 means absent, which validation rejects
	TakeProfit float64 // 0 means absent, which is allowed
	Size       float64
}

// HasStopLoss reports whether the request carries a stop-loss price.
func (r OrderRequest) HasStopLoss() bool { return r.StopLoss > 0 }

// HasTakeProfit reports whether the request carries a take-profit price.
func (r OrderRequest) HasTakeProfit() bool { return r.TakeProfit > 0 }

// CloseInstruction tells the commit path to close (part of) a position.
// Produced by the monitor when a quote crosses SL/TP, or by an explicit
// close request.
type CloseInstruction struct {
	PositionID int64
	Price      float64     // Price the close is booked at
	Size       float64     // 0 means close the full remaining size
	Reason     CloseReason // SL, TP or MANUAL
	Freshness  Freshness   // Provenance of the quote that triggered the close
}
