package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riskcore/internal/domain"
)

func testAccount() *domain.Account {
	return &domain.Account{ID: 1, Balance: 10000, MaxRiskPerTrade: 0.02}
}

func testInstrument() *domain.Instrument {
	return &domain.Instrument{Symbol: "EURUSD", MinStopDistance: 0.0005, PointSize: 0.0001}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		req        domain.OrderRequest
		account    *domain.Account
		instrument *domain.Instrument
		wantOK     bool
		wantReason Reason
		wantMsg    string
	}{
		{
			name: "valid buy order",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.1100, Size: 10000,
			},
			wantOK: true,
		},
		{
			name: "valid sell order without take profit",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Sell,
				EntryPrice: 1.1000, StopLoss: 1.1050, Size: 10000,
			},
			wantOK: true,
		},
		{
			name: "missing stop loss",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, Size: 10000,
			},
			wantReason: ReasonMissingStopLoss,
			wantMsg:    "Stop Loss is mandatory. Please provide a stop loss price.",
		},
		{
			name: "buy stop loss above entry",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.1050, Size: 10000,
			},
			wantReason: ReasonInvalidStopLossDirection,
			wantMsg:    "For BUY orders, stop loss (1.105) must be below entry price (1.1)",
		},
		{
			name: "buy stop loss equal to entry is rejected",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.1000, Size: 10000,
			},
			wantReason: ReasonInvalidStopLossDirection,
		},
		{
			name: "sell stop loss below entry",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Sell,
				EntryPrice: 1.1000, StopLoss: 1.0950, Size: 10000,
			},
			wantReason: ReasonInvalidStopLossDirection,
			wantMsg:    "For SELL orders, stop loss (1.095) must be above entry price (1.1)",
		},
		{
			name: "stop distance below minimum",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "BTCUSD", Side: domain.Buy,
				EntryPrice: 100, StopLoss: 96, Size: 40,
			},
			instrument: &domain.Instrument{Symbol: "BTCUSD", MinStopDistance: 5, PointSize: 0.01},
			wantReason: ReasonStopLossTooClose,
			wantMsg:    "Stop loss distance is below minimum required.",
		},
		{
			name: "stop distance exactly at minimum is accepted",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "BTCUSD", Side: domain.Buy,
				EntryPrice: 100, StopLoss: 95, Size: 40,
			},
			instrument: &domain.Instrument{Symbol: "BTCUSD", MinStopDistance: 5, PointSize: 0.01},
			wantOK:     true,
		},
		{
			name: "risk above account maximum",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "BTCUSD", Side: domain.Buy,
				// 5 * 50 / 10000 = 0.025 > 0.02
				EntryPrice: 100, StopLoss: 95, Size: 50,
			},
			instrument: &domain.Instrument{Symbol: "BTCUSD", MinStopDistance: 1, PointSize: 0.01},
			wantReason: ReasonRiskExceeded,
			wantMsg:    "Risk percentage exceeds maximum allowed.",
		},
		{
			name: "risk exactly at account maximum is accepted",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "BTCUSD", Side: domain.Buy,
				// 5 * 40 / 10000 = 0.02 == MaxRiskPerTrade
				EntryPrice: 100, StopLoss: 95, Size: 40,
			},
			instrument: &domain.Instrument{Symbol: "BTCUSD", MinStopDistance: 1, PointSize: 0.01},
			wantOK:     true,
		},
		{
			name: "zero balance rejects on risk",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.0950, Size: 10000,
			},
			account:    &domain.Account{ID: 1, Balance: 0, MaxRiskPerTrade: 0.02},
			wantReason: ReasonRiskExceeded,
		},
		{
			name: "zero size rejects on risk",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.0950, Size: 0,
			},
			wantReason: ReasonRiskExceeded,
		},
		{
			name: "buy take profit below entry",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.0950, TakeProfit: 1.0980, Size: 10000,
			},
			wantReason: ReasonInvalidTakeProfitDirection,
			wantMsg:    "For BUY orders, take profit (1.098) must be above entry price (1.1)",
		},
		{
			name: "sell take profit above entry",
			req: domain.OrderRequest{
				AccountID: 1, Symbol: "EURUSD", Side: domain.Sell,
				EntryPrice: 1.1000, StopLoss: 1.1050, TakeProfit: 1.1020, Size: 10000,
			},
			wantReason: ReasonInvalidTakeProfitDirection,
		},
		{
			name: "stop loss check precedes risk check",
			req: domain.OrderRequest{
				// Both SL direction and risk are wrong; SL direction wins.
				AccountID: 1, Symbol: "EURUSD", Side: domain.Buy,
				EntryPrice: 1.1000, StopLoss: 1.2000, Size: 500000,
			},
			wantReason: ReasonInvalidStopLossDirection,
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := tt.account
			if account == nil {
				account = testAccount()
			}
			instrument := tt.instrument
			if instrument == nil {
				instrument = testInstrument()
			}

			res := v.Validate(tt.req, account, instrument)

			assert.Equal(t, tt.wantOK, res.Accepted)
			if tt.wantOK {
				assert.Empty(t, res.Reason)
				assert.Empty(t, res.Message)
				return
			}
			assert.Equal(t, tt.wantReason, res.Reason)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, res.Message)
			}
		})
	}
}

func TestRiskFraction(t *testing.T) {
	assert.InDelta(t, 0.02, RiskFraction(100, 95, 40, 10000), 1e-12)
	assert.InDelta(t, 0.02, RiskFraction(95, 100, 40, 10000), 1e-12) // direction irrelevant
	assert.Zero(t, RiskFraction(100, 95, 40, 0))
}

func TestHedgeGuard(t *testing.T) {
	g := NewHedgeGuard()

	buy := &domain.Position{Side: domain.Buy, Status: domain.StatusOpen}
	partialBuy := &domain.Position{Side: domain.Buy, Status: domain.StatusPartial}
	closedSell := &domain.Position{Side: domain.Sell, Status: domain.StatusClosed}

	t.Run("no live positions", func(t *testing.T) {
		assert.True(t, g.Check(nil, domain.Sell).Accepted)
	})

	t.Run("same side allowed", func(t *testing.T) {
		assert.True(t, g.Check([]*domain.Position{buy}, domain.Buy).Accepted)
	})

	t.Run("opposite side rejected", func(t *testing.T) {
		res := g.Check([]*domain.Position{buy}, domain.Sell)
		assert.False(t, res.Accepted)
		assert.Equal(t, ReasonHedgingDisabled, res.Reason)
		assert.Equal(t, "Hedging is disabled for this account", res.Message)
	})

	t.Run("partial position still blocks opposite side", func(t *testing.T) {
		res := g.Check([]*domain.Position{partialBuy}, domain.Sell)
		assert.False(t, res.Accepted)
	})

	t.Run("closed position does not block", func(t *testing.T) {
		assert.True(t, g.Check([]*domain.Position{closedSell}, domain.Buy).Accepted)
	})
}
