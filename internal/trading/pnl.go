package trading

import "riskcore/internal/domain"

// RealizedPNL computes the profit or loss booked by closing size units at
// closePrice: (close - entry) * size for BUY, mirrored for SELL.
func RealizedPNL(side domain.Side, entryPrice, closePrice, size float64) float64 {
	if side == domain.Buy {
		return (closePrice - entryPrice) * size
	}
	return (entryPrice - closePrice) * size
}

// UnrealizedPNL computes the mark-to-market P&L of the live part of a
// position at the given price.
func UnrealizedPNL(pos *domain.Position, price float64) float64 {
	return RealizedPNL(pos.Side, pos.EntryPrice, price, pos.LiveSize())
}
