package risk

import (
	"math"

	"riskcore/internal/domain"
)

// Validator is the pure rule engine for order requests. It has no state and
// no side effects; it is safe to call concurrently without locking.
//
// Checks run in a fixed order and short-circuit on the first failure so that
// a given malformed request always produces the same user-facing message:
//  1. stop loss present
//  2. stop loss on the protective side of entry
//  3. stop loss distance at least the instrument minimum
//  4. risk fraction within (0, account.MaxRiskPerTrade]
//  5. take profit, if present, on the profitable side of entry
type Validator struct{}

// NewValidator creates a validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate evaluates an order request against account and instrument state.
func (v *Validator) Validate(req domain.OrderRequest, account *domain.Account, instrument *domain.Instrument) Result {
	// 1. Stop loss is mandatory.
	if !req.HasStopLoss() {
		return Reject(ReasonMissingStopLoss,
			"Stop Loss is mandatory. Please provide a stop loss price.")
	}

	// 2. Stop loss must sit on the losing side of entry, strictly.
	switch req.Side {
	case domain.Buy:
		if req.StopLoss >= req.EntryPrice {
			return Reject(ReasonInvalidStopLossDirection,
				"For BUY orders, stop loss (%g) must be below entry price (%g)",
				req.StopLoss, req.EntryPrice)
		}
	case domain.Sell:
		if req.StopLoss <= req.EntryPrice {
			return Reject(ReasonInvalidStopLossDirection,
				"For SELL orders, stop loss (%g) must be above entry price (%g)",
				req.StopLoss, req.EntryPrice)
		}
	}

	// 3. Stop distance must meet the instrument minimum; exact equality is
	// accepted.
	stopDistance := math.Abs(req.EntryPrice - req.StopLoss)
	if stopDistance < instrument.MinStopDistance {
		return Reject(ReasonStopLossTooClose,
			"Stop loss distance is below minimum required.")
	}

	// 4. Risk fraction: loss at SL relative to balance. Must be strictly
	// positive and at most the account limit; equality is accepted.
	if account.Balance <= 0 {
		return Reject(ReasonRiskExceeded,
			"Risk percentage exceeds maximum allowed.")
	}
	riskFraction := RiskFraction(req.EntryPrice, req.StopLoss, req.Size, account.Balance)
	if riskFraction <= 0 || riskFraction > account.MaxRiskPerTrade {
		return Reject(ReasonRiskExceeded,
			"Risk percentage exceeds maximum allowed.")
	}

	// 5. Take profit is optional; only validated when present.
	if req.HasTakeProfit() {
		switch req.Side {
		case domain.Buy:
			if req.TakeProfit <= req.EntryPrice {
				return Reject(ReasonInvalidTakeProfitDirection,
					"For BUY orders, take profit (%g) must be above entry price (%g)",
					req.TakeProfit, req.EntryPrice)
			}
		case domain.Sell:
			if req.TakeProfit >= req.EntryPrice {
				return Reject(ReasonInvalidTakeProfitDirection,
					"For SELL orders, take profit (%g) must be below entry price (%g)",
					req.TakeProfit, req.EntryPrice)
			}
		}
	}

	return Accept()
}

// RiskFraction computes the fraction of balance lost if the stop loss is
// hit: |entry - SL| * size / balance.
func RiskFraction(entryPrice, stopLoss, size, balance float64) float64 {
	if balance == 0 {
		return 0
	}
	return math.Abs(entryPrice-stopLoss) * size / balance
}
