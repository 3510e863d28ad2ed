package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"riskcore/internal/domain"
	"riskcore/internal/obs"
	"riskcore/internal/ports"
)

// Closer applies a close instruction through the authoritative commit path.
// Implemented by Coordinator.
type Closer interface {
	Close(ctx context.Context, instr domain.CloseInstruction) (*domain.Position, error)
}

// MonitorConfig holds configuration for the position monitor.
type MonitorConfig struct {
	Store  ports.Store
	Prices ports.PriceSource
	Closer Closer
	Logger ports.Logger
	Events ports.EventRecorder
	// Feed, when set, is polled by RefreshPrices to warm the quote cache.
	Feed ports.PriceFeed
	// Cache receives feed prices from RefreshPrices. Required when Feed is set.
	Cache ports.QuoteCache
	// CloseOnSynthetic controls whether a crossing observed only on a
	// SYNTHETIC quote is allowed to realize a close. Strict deployments set
	// this false and wait for a live confirmation on a later tick.
	CloseOnSynthetic bool
}

// Monitor periodically sweeps live positions and force-closes those whose
// symbol's current price has crossed the stop-loss or take-profit level.
// Scan and RefreshPrices are the two idempotent entry points a scheduler
// invokes; the monitor itself keeps no state between ticks.
type Monitor struct {
	store            ports.Store
	prices           ports.PriceSource
	closer           Closer
	logger           ports.Logger
	events           ports.EventRecorder
	feed             ports.PriceFeed
	cache            ports.QuoteCache
	closeOnSynthetic bool
}

// NewMonitor creates a monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Store == nil || cfg.Prices == nil || cfg.Closer == nil || cfg.Logger == nil || cfg.Events == nil {
		return nil, fmt.Errorf("missing required dependencies for Monitor")
	}
	if cfg.Feed != nil && cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required when a price feed is configured")
	}
	return &Monitor{
		store:            cfg.Store,
		prices:           cfg.Prices,
		closer:           cfg.Closer,
		logger:           cfg.Logger,
		events:           cfg.Events,
		feed:             cfg.Feed,
		cache:            cfg.Cache,
		closeOnSynthetic: cfg.CloseOnSynthetic,
	}, nil
}

// Scan loads every live position, fetches one quote per distinct symbol,
// and applies a close for each position whose trigger level was crossed.
// It returns the instructions it emitted.
//
// Failures are isolated: a failed close affects only its own position, and
// the next tick retries whatever is still open. Only the initial position
// load can fail the scan as a whole.
func (m *Monitor) Scan(ctx context.Context) ([]domain.CloseInstruction, error) {
	start := time.Now()
	defer func() {
		obs.ScanDuration.Observe(time.Since(start).Seconds())
	}()

	positions, err := m.store.FindAllLivePositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load live positions: %w", err)
	}
	if len(positions) == 0 {
		return nil, nil
	}

	// One fetch per distinct symbol, in parallel. GetPrice cannot fail
	// (it degrades to synthetic), so every symbol gets a quote.
	bySymbol := make(map[string][]*domain.Position)
	for _, pos := range positions {
		bySymbol[pos.Symbol] = append(bySymbol[pos.Symbol], pos)
	}
	quotes := m.fetchQuotes(ctx, bySymbol)

	var instructions []domain.CloseInstruction
	for symbol, group := range bySymbol {
		quote, ok := quotes[symbol]
		if !ok {
			// Context died mid-fetch; leave these for the next tick.
			obs.ScanErrors.WithLabelValues("quote").Inc()
			continue
		}
		for _, pos := range group {
			instr, triggered := evaluate(pos, quote)
			if !triggered {
				continue
			}
			if quote.IsSynthetic() && !m.closeOnSynthetic {
				obs.SyntheticClosesSuppressed.Inc()
				m.logger.Debug(ctx, "close suppressed, trigger crossed only on synthetic quote", map[string]interface{}{
					"positionID": pos.ID,
					"symbol":     symbol,
					"reason":     instr.Reason,
					"quote":      quote.Price,
				})
				continue
			}
			instructions = append(instructions, instr)
		}
	}

	m.applyCloses(ctx, instructions)
	return instructions, nil
}

// fetchQuotes resolves one quote per symbol concurrently.
func (m *Monitor) fetchQuotes(ctx context.Context, bySymbol map[string][]*domain.Position) map[string]domain.PriceQuote {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		quotes = make(map[string]domain.PriceQuote, len(bySymbol))
	)
	for symbol := range bySymbol {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			quote := m.prices.GetPrice(ctx, symbol)
			mu.Lock()
			quotes[symbol] = quote
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()
	return quotes
}

// applyCloses pushes each instruction through the commit path. Closes are
// parallel across positions; the store's pair scope serializes the ones
// that share an (account, instrument) pair.
func (m *Monitor) applyCloses(ctx context.Context, instructions []domain.CloseInstruction) {
	var wg sync.WaitGroup
	for _, instr := range instructions {
		wg.Add(1)
		go func(instr domain.CloseInstruction) {
			defer wg.Done()
			_, err := m.closer.Close(ctx, instr)
			if err == nil {
				return
			}
			if errors.Is(err, ports.ErrPositionNotOpen) {
				// Closed by a concurrent path since we evaluated it.
				m.logger.Debug(ctx, "position already closed, skipping", map[string]interface{}{
					"positionID": instr.PositionID,
				})
				return
			}
			obs.ScanErrors.WithLabelValues("close").Inc()
			m.logger.Error(ctx, err, "failed to close position, will retry next tick", map[string]interface{}{
				"positionID": instr.PositionID,
				"reason":     instr.Reason,
			})
		}(instr)
	}
	wg.Wait()
}

// evaluate decides whether a quote crosses the position's SL or TP. The
// stop loss is checked first and wins when synthetic noise crosses both
// levels in the same tick: the protective exit takes precedence. The close
// is booked at the trigger level, not at the observed quote.
func evaluate(pos *domain.Position, quote domain.PriceQuote) (domain.CloseInstruction, bool) {
	var (
		reason domain.CloseReason
		price  float64
	)
	switch pos.Side {
	case domain.Buy:
		if quote.Price <= pos.StopLoss {
			reason, price = domain.CloseReasonStopLoss, pos.StopLoss
		} else if pos.HasTakeProfit() && quote.Price >= pos.TakeProfit {
			reason, price = domain.CloseReasonTakeProfit, pos.TakeProfit
		}
	case domain.Sell:
		if quote.Price >= pos.StopLoss {
			reason, price = domain.CloseReasonStopLoss, pos.StopLoss
		} else if pos.HasTakeProfit() && quote.Price <= pos.TakeProfit {
			reason, price = domain.CloseReasonTakeProfit, pos.TakeProfit
		}
	}
	if reason == "" {
		return domain.CloseInstruction{}, false
	}
	return domain.CloseInstruction{
		PositionID: pos.ID,
		Price:      price,
		Reason:     reason,
		Freshness:  quote.Freshness,
	}, true
}

// RefreshPrices is the secondary periodic entry point: it pulls current
// prices from the live feed into the quote cache (when a feed is
// configured) and recomputes the unrealized P&L of every live position.
// Safe to call at any cadence; each run stands alone.
func (m *Monitor) RefreshPrices(ctx context.Context) error {
	positions, err := m.store.FindAllLivePositions(ctx)
	if err != nil {
		return fmt.Errorf("failed to load live positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	symbols := make(map[string]struct{})
	for _, pos := range positions {
		symbols[pos.Symbol] = struct{}{}
	}

	if m.feed != nil {
		var wg sync.WaitGroup
		for symbol := range symbols {
			wg.Add(1)
			go func(symbol string) {
				defer wg.Done()
				price, err := m.feed.GetTickerPrice(ctx, symbol)
				if err != nil {
					m.logger.Warn(ctx, "feed price fetch failed", map[string]interface{}{
						"symbol": symbol,
						"error":  err.Error(),
					})
					return
				}
				if err := m.cache.SetQuote(ctx, symbol, price, time.Now()); err != nil {
					m.logger.Warn(ctx, "failed to cache feed price", map[string]interface{}{
						"symbol": symbol,
						"error":  err.Error(),
					})
				}
			}(symbol)
		}
		wg.Wait()
	}

	// One quote per distinct symbol, shared by every position on it.
	quotes := make(map[string]domain.PriceQuote, len(symbols))
	for symbol := range symbols {
		quotes[symbol] = m.prices.GetPrice(ctx, symbol)
	}

	for _, pos := range positions {
		pnl := UnrealizedPNL(pos, quotes[pos.Symbol].Price)
		if err := m.store.UpdateUnrealizedPNL(ctx, pos.ID, pnl); err != nil {
			m.logger.Warn(ctx, "failed to update unrealized PNL", map[string]interface{}{
				"positionID": pos.ID,
				"error":      err.Error(),
			})
		}
	}
	return nil
}
