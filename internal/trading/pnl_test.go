package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riskcore/internal/domain"
)

func TestRealizedPNL(t *testing.T) {
	assert.Equal(t, 10.0, RealizedPNL(domain.Buy, 100, 110, 1))
	assert.Equal(t, -5.0, RealizedPNL(domain.Buy, 100, 95, 1))
	assert.Equal(t, 10.0, RealizedPNL(domain.Sell, 100, 90, 1))
	assert.Equal(t, -5.0, RealizedPNL(domain.Sell, 100, 105, 1))
	assert.Equal(t, 20.0, RealizedPNL(domain.Buy, 100, 110, 2))
}

func TestUnrealizedPNL(t *testing.T) {
	pos := &domain.Position{
		Side: domain.Buy, EntryPrice: 100, Size: 2, RemainingSize: 2,
		Status: domain.StatusOpen,
	}
	assert.Equal(t, 6.0, UnrealizedPNL(pos, 103))

	// Partial closes mark only the live remainder.
	pos.Status = domain.StatusPartial
	pos.RemainingSize = 0.5
	assert.Equal(t, 1.5, UnrealizedPNL(pos, 103))

	pos.Status = domain.StatusClosed
	assert.Zero(t, UnrealizedPNL(pos, 103))
}
