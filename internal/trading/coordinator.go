// Package trading contains the two writers of position state: the open
// coordinator and the SL/TP monitor. Both commit through the same
// per-(account, instrument) atomic scope of the store, so an open can never
// interleave with a close on the same pair.
package trading

import (
	"context"
	"fmt"
	"math"
	"time"

	"riskcore/internal/domain"
	"riskcore/internal/obs"
	"riskcore/internal/ports"
	"riskcore/internal/risk"
)

// Remainders at or below this are treated as a full close. Guards against
// float dust keeping a position PARTIAL forever.
const fullCloseEpsilon = 1e-9

// Coordinator is the single authoritative entry point for creating and
// closing positions. Nothing else may write position state.
type Coordinator struct {
	store     ports.Store
	validator *risk.Validator
	hedge     *risk.HedgeGuard
	logger    ports.Logger
	events    ports.EventRecorder
}

// NewCoordinator creates a coordinator.
func NewCoordinator(store ports.Store, validator *risk.Validator, hedge *risk.HedgeGuard, logger ports.Logger, events ports.EventRecorder) (*Coordinator, error) {
	if store == nil || validator == nil || hedge == nil || logger == nil || events == nil {
		return nil, fmt.Errorf("missing required dependencies for Coordinator")
	}
	return &Coordinator{
		store:     store,
		validator: validator,
		hedge:     hedge,
		logger:    logger,
		events:    events,
	}, nil
}

// Open validates an order request and, if accepted, creates the position.
//
// Exactly one of the three returns is meaningful: a created position, a
// structured rejection, or an infrastructure error. Validation rejections
// never leave partial state; an error means the store failed and the caller
// may retry.
func (c *Coordinator) Open(ctx context.Context, req domain.OrderRequest) (*domain.Position, *risk.Result, error) {
	if !req.Side.IsValid() {
		return nil, nil, fmt.Errorf("invalid side %q: %w", req.Side, ports.ErrInvalidRequest)
	}
	if req.EntryPrice <= 0 {
		return nil, nil, fmt.Errorf("entry price must be positive: %w", ports.ErrInvalidRequest)
	}

	var (
		created   *domain.Position
		rejection *risk.Result
	)

	// Load, validate, hedge-check and insert inside one atomic scope so a
	// concurrent open on the same pair cannot slip between the hedge read
	// and the write.
	err := c.store.WithPair(ctx, req.AccountID, req.Symbol, func(tx ports.PairTx) error {
		account, err := tx.GetAccount(ctx, req.AccountID)
		if err != nil {
			return fmt.Errorf("failed to load account %d: %w", req.AccountID, err)
		}
		if account == nil {
			return fmt.Errorf("account %d: %w", req.AccountID, ports.ErrNotFound)
		}
		instrument, err := tx.GetInstrument(ctx, req.Symbol)
		if err != nil {
			return fmt.Errorf("failed to load instrument %s: %w", req.Symbol, err)
		}
		if instrument == nil {
			return fmt.Errorf("instrument %s: %w", req.Symbol, ports.ErrNotFound)
		}

		if res := c.validator.Validate(req, account, instrument); !res.Accepted {
			rejection = &res
			return nil
		}

		live, err := tx.FindLivePositions(ctx, req.AccountID, req.Symbol)
		if err != nil {
			return fmt.Errorf("failed to load live positions for hedge check: %w", err)
		}
		if res := c.hedge.Check(live, req.Side); !res.Accepted {
			rejection = &res
			return nil
		}

		pos := &domain.Position{
			AccountID:     req.AccountID,
			Symbol:        req.Symbol,
			Side:          req.Side,
			EntryPrice:    req.EntryPrice,
			StopLoss:      req.StopLoss,
			TakeProfit:    req.TakeProfit,
			Size:          req.Size,
			RemainingSize: req.Size,
			RiskFraction:  risk.RiskFraction(req.EntryPrice, req.StopLoss, req.Size, account.Balance),
			Status:        domain.StatusOpen,
			HedgeDisabled: true, // policy default for all accounts in this version
			OpenedAt:      time.Now().UTC(),
		}
		id, err := tx.CreatePosition(ctx, pos)
		if err != nil {
			return fmt.Errorf("failed to create position: %w", err)
		}
		pos.ID = id
		created = pos
		return nil
	})
	if err != nil {
		obs.TradeOpens.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	if rejection != nil {
		obs.TradeOpens.WithLabelValues("rejected").Inc()
		obs.TradeRejections.WithLabelValues(string(rejection.Reason)).Inc()
		c.logger.Warn(ctx, "trade open rejected", map[string]interface{}{
			"accountID": req.AccountID,
			"symbol":    req.Symbol,
			"side":      req.Side,
			"reason":    rejection.Reason,
			"message":   rejection.Message,
		})
		c.events.RecordEvent(ctx, ports.Event{
			Kind: "trade_rejected",
			Fields: map[string]interface{}{
				"accountID": req.AccountID,
				"symbol":    req.Symbol,
				"reason":    string(rejection.Reason),
			},
		})
		return nil, rejection, nil
	}

	obs.TradeOpens.WithLabelValues("accepted").Inc()
	c.logger.Info(ctx, "position opened", map[string]interface{}{
		"positionID": created.ID,
		"accountID":  created.AccountID,
		"symbol":     created.Symbol,
		"side":       created.Side,
		"entryPrice": created.EntryPrice,
		"stopLoss":   created.StopLoss,
		"takeProfit": created.TakeProfit,
		"size":       created.Size,
	})
	return created, nil, nil
}

// Close applies a close instruction: full or partial, from the monitor or
// an explicit request. The position transitions to CLOSED (or PARTIAL) and
// the account balance absorbs the realized P&L inside the same atomic
// scope Open uses.
//
// Closing a position that is missing or already closed returns
// ErrPositionNotOpen; callers treat that as a no-op. A protective close is
// never blocked by the balance: if the debit would drive the balance
// negative, the balance is clamped at zero and the close is flagged for
// reconciliation.
func (c *Coordinator) Close(ctx context.Context, instr domain.CloseInstruction) (*domain.Position, error) {
	// Locate the position first to learn which pair scope to enter.
	pos, err := c.store.GetPosition(ctx, instr.PositionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load position %d: %w", instr.PositionID, err)
	}
	if pos == nil || !pos.IsOpen() {
		return nil, fmt.Errorf("position %d: %w", instr.PositionID, ports.ErrPositionNotOpen)
	}
	if instr.Price <= 0 {
		return nil, fmt.Errorf("close price must be positive: %w", ports.ErrInvalidRequest)
	}

	var (
		closed        *domain.Position
		realized      float64
		reconcile     bool
		reconcileDiff float64
	)

	err = c.store.WithPair(ctx, pos.AccountID, pos.Symbol, func(tx ports.PairTx) error {
		// Re-read inside the scope: the position may have been closed
		// between the lookup above and acquiring the pair lock.
		p, err := tx.GetPosition(ctx, instr.PositionID)
		if err != nil {
			return fmt.Errorf("failed to re-read position %d: %w", instr.PositionID, err)
		}
		if p == nil || !p.IsOpen() {
			return fmt.Errorf("position %d: %w", instr.PositionID, ports.ErrPositionNotOpen)
		}

		liveSize := p.LiveSize()
		closeSize := instr.Size
		if closeSize <= 0 {
			closeSize = liveSize
		}
		if closeSize > liveSize {
			return fmt.Errorf("close size %g exceeds remaining %g: %w", closeSize, liveSize, ports.ErrInvalidRequest)
		}

		account, err := tx.GetAccount(ctx, p.AccountID)
		if err != nil {
			return fmt.Errorf("failed to load account %d: %w", p.AccountID, err)
		}
		if account == nil {
			return fmt.Errorf("account %d: %w", p.AccountID, ports.ErrNotFound)
		}

		realized = RealizedPNL(p.Side, p.EntryPrice, instr.Price, closeSize)

		newBalance := account.Balance + realized
		if newBalance < 0 {
			// Realized loss is capped at position exposure, so this only
			// happens when the account was already nearly drained. The
			// protective exit still proceeds; the shortfall is external
			// reconciliation's problem.
			reconcile = true
			reconcileDiff = -newBalance
			newBalance = 0
		}

		remaining := liveSize - closeSize
		if remaining <= fullCloseEpsilon {
			p.Status = domain.StatusClosed
			p.RemainingSize = 0
			p.ClosePrice = instr.Price
			p.CloseReason = instr.Reason
			p.ClosedAt = time.Now().UTC()
		} else {
			p.Status = domain.StatusPartial
			p.RemainingSize = remaining
		}
		p.PNL += realized
		p.UnrealizedPNL = 0

		if err := tx.UpdatePosition(ctx, p); err != nil {
			return fmt.Errorf("failed to update position %d: %w", p.ID, err)
		}
		if err := tx.UpdateAccountBalance(ctx, account.ID, newBalance); err != nil {
			return fmt.Errorf("failed to update balance of account %d: %w", account.ID, err)
		}
		closed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	obs.PositionCloses.WithLabelValues(string(instr.Reason)).Inc()
	c.logger.Info(ctx, "position closed", map[string]interface{}{
		"positionID": closed.ID,
		"accountID":  closed.AccountID,
		"symbol":     closed.Symbol,
		"reason":     instr.Reason,
		"closePrice": instr.Price,
		"realized":   realized,
		"status":     closed.Status,
		"freshness":  instr.Freshness,
	})
	if reconcile {
		obs.ReconciliationsFlagged.Inc()
		c.events.RecordEvent(ctx, ports.Event{
			Kind: "reconciliation_required",
			Fields: map[string]interface{}{
				"positionID": closed.ID,
				"accountID":  closed.AccountID,
				"shortfall":  math.Abs(reconcileDiff),
			},
		})
	}
	return closed, nil
}
