package risk

import (
	"riskcore/internal/domain"
)

// HedgeGuard rejects opens that would create opposing-side exposure on the
// same (account, instrument) pair. The policy is hedge-disabled for every
// account in this version; it is recorded on each position at open time so
// positions keep the policy under which they were created.
type HedgeGuard struct{}

// NewHedgeGuard creates a hedge guard.
func NewHedgeGuard() *HedgeGuard {
	return &HedgeGuard{}
}

// Check inspects the live positions for the pair and rejects when any of
// them sits on the opposite side of the requested open.
//
// livePositions must come from the same transactional snapshot the caller
// will insert into; checking against a stale read would let two concurrent
// opens both observe "no opposite position" and create a hedge.
func (g *HedgeGuard) Check(livePositions []*domain.Position, side domain.Side) Result {
	opposite := side.Opposite()
	for _, pos := range livePositions {
		if !pos.IsOpen() {
			continue
		}
		if pos.Side == opposite {
			return Reject(ReasonHedgingDisabled,
				"Hedging is disabled for this account")
		}
	}
	return Accept()
}
