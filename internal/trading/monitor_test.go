package trading

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskcore/internal/domain"
	"riskcore/internal/ports"
)

type mockPrices struct {
	mu     sync.Mutex
	quotes map[string]domain.PriceQuote
	calls  map[string]int
}

func (m *mockPrices) GetPrice(ctx context.Context, symbol string) domain.PriceQuote {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	if q, ok := m.quotes[symbol]; ok {
		return q
	}
	return domain.PriceQuote{Symbol: symbol, Price: 100, Timestamp: time.Now(), Freshness: domain.FreshnessSynthetic}
}

func (m *mockPrices) callsFor(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

func liveQuote(symbol string, price float64) domain.PriceQuote {
	return domain.PriceQuote{Symbol: symbol, Price: price, Timestamp: time.Now(), Freshness: domain.FreshnessLive}
}

func syntheticQuote(symbol string, price float64) domain.PriceQuote {
	return domain.PriceQuote{Symbol: symbol, Price: price, Timestamp: time.Now(), Freshness: domain.FreshnessSynthetic}
}

type mockCache struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (m *mockCache) GetQuote(ctx context.Context, symbol string) (float64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.prices[symbol]; ok {
		return p, time.Now(), nil
	}
	return 0, time.Time{}, ports.ErrCacheMiss
}

func (m *mockCache) SetQuote(ctx context.Context, symbol string, price float64, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices == nil {
		m.prices = make(map[string]float64)
	}
	m.prices[symbol] = price
	return nil
}

type mockFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  int
}

func (m *mockFeed) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	return m.prices[symbol], nil
}

func newTestMonitor(t *testing.T, store *fakeStore, prices *mockPrices, closeOnSynthetic bool) (*Monitor, *mockLogger) {
	t.Helper()
	coord, logger, _ := newTestCoordinator(t, store)
	mon, err := NewMonitor(MonitorConfig{
		Store:            store,
		Prices:           prices,
		Closer:           coord,
		Logger:           logger,
		Events:           &mockEvents{},
		CloseOnSynthetic: closeOnSynthetic,
	})
	require.NoError(t, err)
	return mon, logger
}

func openPosition(store *fakeStore, symbol string, side domain.Side, entry, sl, tp, size float64) *domain.Position {
	return store.addPosition(domain.Position{
		AccountID: 1, Symbol: symbol, Side: side,
		EntryPrice: entry, StopLoss: sl, TakeProfit: tp, Size: size,
		Status: domain.StatusOpen, OpenedAt: time.Now().UTC(),
	})
}

func TestScan_NoLivePositions(t *testing.T) {
	store := seededStore()
	mon, _ := newTestMonitor(t, store, &mockPrices{}, true)

	instrs, err := mon.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, instrs)
}

func TestScan_NoTrigger(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 100)}}
	mon, _ := newTestMonitor(t, store, prices, true)

	instrs, err := mon.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, instrs)

	stored, _ := store.GetPosition(context.Background(), pos.ID)
	assert.True(t, stored.IsOpen())
}

func TestScan_StopLossClosesAtTriggerLevel(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 94)}}
	mon, _ := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	instrs, err := mon.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, pos.ID, instrs[0].PositionID)
	assert.Equal(t, domain.CloseReasonStopLoss, instrs[0].Reason)
	assert.Equal(t, float64(95), instrs[0].Price) // trigger level, not the observed 94

	stored, _ := store.GetPosition(ctx, pos.ID)
	assert.Equal(t, domain.StatusClosed, stored.Status)
	assert.Equal(t, float64(95), stored.ClosePrice)
	assert.InDelta(t, -5, stored.PNL, 1e-12)

	acc, _ := store.GetAccount(ctx, 1)
	assert.InDelta(t, 9995, acc.Balance, 1e-9)
}

func TestScan_TakeProfitClosesAtTriggerLevel(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 112)}}
	mon, _ := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	instrs, err := mon.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, domain.CloseReasonTakeProfit, instrs[0].Reason)
	assert.Equal(t, float64(110), instrs[0].Price)

	stored, _ := store.GetPosition(ctx, pos.ID)
	assert.Equal(t, domain.StatusClosed, stored.Status)
	assert.InDelta(t, 10, stored.PNL, 1e-12)

	acc, _ := store.GetAccount(ctx, 1)
	assert.InDelta(t, 10010, acc.Balance, 1e-9)
}

func TestScan_BoundaryEquality(t *testing.T) {
	t.Run("quote at stop loss triggers", func(t *testing.T) {
		store := seededStore()
		openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
		prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 95)}}
		mon, _ := newTestMonitor(t, store, prices, true)

		instrs, err := mon.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, instrs, 1)
		assert.Equal(t, domain.CloseReasonStopLoss, instrs[0].Reason)
	})

	t.Run("quote at take profit triggers", func(t *testing.T) {
		store := seededStore()
		openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
		prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 110)}}
		mon, _ := newTestMonitor(t, store, prices, true)

		instrs, err := mon.Scan(context.Background())
		require.NoError(t, err)
		require.Len(t, instrs, 1)
		assert.Equal(t, domain.CloseReasonTakeProfit, instrs[0].Reason)
	})
}

func TestScan_SellSide(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Sell, 100, 105, 90, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 106)}}
	mon, _ := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	instrs, err := mon.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, domain.CloseReasonStopLoss, instrs[0].Reason)
	assert.Equal(t, float64(105), instrs[0].Price)

	stored, _ := store.GetPosition(ctx, pos.ID)
	assert.InDelta(t, -5, stored.PNL, 1e-12) // (100-105)*1
}

func TestScan_PositionWithoutTakeProfit(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 0, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 500)}}
	mon, _ := newTestMonitor(t, store, prices, true)

	// No TP level set, so even a huge rally closes nothing.
	instrs, err := mon.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, instrs)

	stored, _ := store.GetPosition(context.Background(), pos.ID)
	assert.True(t, stored.IsOpen())
}

func TestScan_SyntheticSuppression(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": syntheticQuote("BTCUSD", 94)}}

	mon, logger := newTestMonitor(t, store, prices, false)
	instrs, err := mon.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, instrs)

	stored, _ := store.GetPosition(context.Background(), pos.ID)
	assert.True(t, stored.IsOpen())
	assert.Contains(t, logger.debugMsgs, "close suppressed, trigger crossed only on synthetic quote")

	// With the policy relaxed, the same synthetic quote closes it.
	mon2, _ := newTestMonitor(t, store, prices, true)
	instrs, err = mon2.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, instrs, 1)
	assert.Equal(t, domain.FreshnessSynthetic, instrs[0].Freshness)

	stored, _ = store.GetPosition(context.Background(), pos.ID)
	assert.Equal(t, domain.StatusClosed, stored.Status)
}

func TestScan_SecondScanIsNoop(t *testing.T) {
	store := seededStore()
	openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 94)}}
	mon, _ := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	instrs, err := mon.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, instrs, 1)

	instrs, err = mon.Scan(ctx)
	require.NoError(t, err)
	assert.Empty(t, instrs)

	acc, _ := store.GetAccount(ctx, 1)
	assert.InDelta(t, 9995, acc.Balance, 1e-9) // debited exactly once
}

func TestScan_CloseFailureIsIsolated(t *testing.T) {
	store := seededStore()
	store.addInstrument(domain.Instrument{Symbol: "ETHUSD", MinStopDistance: 1, PointSize: 0.01})
	failing := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	healthy := openPosition(store, "ETHUSD", domain.Buy, 100, 95, 110, 1)
	store.updateErrs[failing.ID] = errors.New("disk full")

	prices := &mockPrices{quotes: map[string]domain.PriceQuote{
		"BTCUSD": liveQuote("BTCUSD", 94),
		"ETHUSD": liveQuote("ETHUSD", 94),
	}}
	mon, logger := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	instrs, err := mon.Scan(ctx)
	require.NoError(t, err)
	assert.Len(t, instrs, 2)

	storedFailing, _ := store.GetPosition(ctx, failing.ID)
	assert.True(t, storedFailing.IsOpen()) // retried next tick
	storedHealthy, _ := store.GetPosition(ctx, healthy.ID)
	assert.Equal(t, domain.StatusClosed, storedHealthy.Status)
	assert.Contains(t, logger.errorMsgs, "failed to close position, will retry next tick")
}

func TestRefreshPrices_UpdatesUnrealizedPNL(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 2)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 103)}}
	mon, _ := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	require.NoError(t, mon.RefreshPrices(ctx))

	stored, _ := store.GetPosition(ctx, pos.ID)
	assert.InDelta(t, 6, stored.UnrealizedPNL, 1e-12) // (103-100)*2
}

func TestRefreshPrices_OneQuotePerSymbol(t *testing.T) {
	store := seededStore()
	a := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)
	b := openPosition(store, "BTCUSD", domain.Buy, 102, 96, 111, 2)
	prices := &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 104)}}
	mon, _ := newTestMonitor(t, store, prices, true)
	ctx := context.Background()

	require.NoError(t, mon.RefreshPrices(ctx))

	// Both positions share the symbol, so the quote is fetched once.
	assert.Equal(t, 1, prices.callsFor("BTCUSD"))

	storedA, _ := store.GetPosition(ctx, a.ID)
	assert.InDelta(t, 4, storedA.UnrealizedPNL, 1e-12) // (104-100)*1
	storedB, _ := store.GetPosition(ctx, b.ID)
	assert.InDelta(t, 4, storedB.UnrealizedPNL, 1e-12) // (104-102)*2
}

func TestRefreshPrices_WarmsCacheFromFeed(t *testing.T) {
	store := seededStore()
	openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)

	coord, logger, _ := newTestCoordinator(t, store)
	cache := &mockCache{}
	feed := &mockFeed{prices: map[string]float64{"BTCUSD": 120}}
	mon, err := NewMonitor(MonitorConfig{
		Store:  store,
		Prices: &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": liveQuote("BTCUSD", 120)}},
		Closer: coord,
		Logger: logger,
		Events: &mockEvents{},
		Feed:   feed,
		Cache:  cache,
	})
	require.NoError(t, err)

	require.NoError(t, mon.RefreshPrices(context.Background()))

	assert.Equal(t, 1, feed.calls) // one fetch per distinct symbol
	cachedPrice, _, err := cache.GetQuote(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, float64(120), cachedPrice)
}

func TestRefreshPrices_FeedFailureDoesNotAbort(t *testing.T) {
	store := seededStore()
	pos := openPosition(store, "BTCUSD", domain.Buy, 100, 95, 110, 1)

	coord, logger, _ := newTestCoordinator(t, store)
	feed := &mockFeed{err: errors.New("connection reset")}
	mon, err := NewMonitor(MonitorConfig{
		Store:  store,
		Prices: &mockPrices{quotes: map[string]domain.PriceQuote{"BTCUSD": syntheticQuote("BTCUSD", 101)}},
		Closer: coord,
		Logger: logger,
		Events: &mockEvents{},
		Feed:   feed,
		Cache:  &mockCache{},
	})
	require.NoError(t, err)

	// The feed being down degrades the refresh, it does not fail it.
	require.NoError(t, mon.RefreshPrices(context.Background()))

	stored, _ := store.GetPosition(context.Background(), pos.ID)
	assert.InDelta(t, 1, stored.UnrealizedPNL, 1e-12)
}

func TestNewMonitor_Validation(t *testing.T) {
	store := seededStore()
	coord, logger, _ := newTestCoordinator(t, store)

	_, err := NewMonitor(MonitorConfig{Store: store, Prices: &mockPrices{}, Closer: coord, Logger: logger})
	assert.Error(t, err) // missing events

	_, err = NewMonitor(MonitorConfig{
		Store: store, Prices: &mockPrices{}, Closer: coord, Logger: logger,
		Events: &mockEvents{}, Feed: &mockFeed{},
	})
	assert.Error(t, err) // feed without cache
}
