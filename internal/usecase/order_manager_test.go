package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"CryptoPulse/internal/domain/models"
	domsvc "CryptoPulse/internal/domain/service"
	"CryptoPulse/internal/service/execution"
	"CryptoPulse/pkg/logger"
	"CryptoPulse/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedBackend struct {
	status    models.OrderStatus
	err       error
	cancelled []string
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Submit(_ context.Context, o *models.Order) (models.ExecutionReport, error) {
	if b.err != nil {
		return models.ExecutionReport{}, b.err
	}
	return models.ExecutionReport{Status: b.status, FilledPrice: o.Price, VenueID: "v-" + o.ID}, nil
}

func (b *scriptedBackend) Cancel(_ context.Context, o *models.Order) error {
	b.cancelled = append(b.cancelled, o.VenueID)
	return nil
}

func newOrderManager(t *testing.T, backend domsvc.ExecutionBackend) (*OrderManager, *RiskGate, *recordingPublisher) {
	t.Helper()
	gate, _, _ := newGate(t, defaultLimits)
	pub := &recordingPublisher{}
	seq := 0
	m := NewOrderManager("default", 1000, gate, backend, pub, metrics.Nop{}, logger.Nop())
	m.newID = func() string {
		seq++
		return "o" + string(rune('0'+seq))
	}
	m.now = gate.now
	return m, gate, pub
}

func market(price float64) models.MarketContext {
	return models.MarketContext{Symbol: "BTCUSDT", Price: price}
}

func TestOrderManager_BuyThenSellResetsPosition(t *testing.T) {
	m, gate, pub := newOrderManager(t, execution.NewPaperBackend())
	ctx := context.Background()

	res := m.ExecuteTrade(ctx, buy(100), market(50000))
	require.True(t, res.Success, res.Message)
	assert.Equal(t, models.StatusFilled, res.Order.Status)
	assert.Equal(t, "paper-o1", res.Order.VenueID)

	pos := m.Positions()["BTCUSDT"]
	assert.True(t, pos.Size.Equal(decimal.RequireFromString("0.002")), pos.Size.String())
	assert.True(t, pos.AvgEntryPrice.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 900.0, m.Portfolio().Balance)

	sell := buy(100)
	sell.Side = models.SideSell
	res = m.ExecuteTrade(ctx, sell, market(50000))
	require.True(t, res.Success, res.Message)

	pos = m.Positions()["BTCUSDT"]
	assert.True(t, pos.Size.IsZero())
	assert.True(t, pos.TotalCost.IsZero())
	assert.True(t, pos.AvgEntryPrice.IsZero())
	assert.Equal(t, 1000.0, m.Portfolio().Balance)

	assert.Equal(t, 2, gate.Status().Daily.TradeCount)
	assert.Len(t, pub.orderEvents(), 2)
	assert.Len(t, m.History(1), 1)
	assert.Len(t, m.History(0), 2)
}

func TestOrderManager_RiskRejectionCreatesNoOrder(t *testing.T) {
	m, _, pub := newOrderManager(t, execution.NewPaperBackend())

	res := m.ExecuteTrade(context.Background(), buy(500), market(50000))
	assert.False(t, res.Success)
	assert.Nil(t, res.Order)
	assert.Equal(t, 300.0, res.Risk.SuggestedTrade.Amount)
	assert.Empty(t, m.ActiveOrders())
	assert.Empty(t, m.History(0))
	assert.Empty(t, pub.orderEvents())
}

func TestOrderManager_BackendFailure(t *testing.T) {
	m, gate, pub := newOrderManager(t, &scriptedBackend{err: errors.New("venue down")})

	res := m.ExecuteTrade(context.Background(), buy(100), market(50000))
	assert.False(t, res.Success)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.StatusFailed, res.Order.Status)
	assert.Equal(t, "venue down", res.Order.Error)
	assert.Empty(t, m.ActiveOrders())
	assert.Empty(t, m.Positions())
	assert.Equal(t, 0, gate.Status().Daily.TradeCount)

	events := pub.orderEvents()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventFailed, events[0].Type)
}

func TestOrderManager_CancelRestingOrder(t *testing.T) {
	backend := &scriptedBackend{status: models.StatusOpen}
	m, _, pub := newOrderManager(t, backend)
	ctx := context.Background()

	res := m.ExecuteTrade(ctx, buy(100), market(50000))
	require.True(t, res.Success)
	assert.Equal(t, models.StatusOpen, res.Order.Status)
	require.Len(t, m.ActiveOrders(), 1)

	o, err := m.CancelOrder(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)
	assert.Equal(t, []string{"v-o1"}, backend.cancelled)
	assert.Empty(t, m.ActiveOrders())

	_, err = m.CancelOrder(ctx, res.Order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	events := pub.orderEvents()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventAccepted, events[0].Type)
	assert.Equal(t, models.StatusOpen, events[0].Order.Status)
	assert.Equal(t, models.EventCancelled, events[1].Type)

	history := m.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, models.EventAccepted, history[0].Type)
	assert.Equal(t, models.EventCancelled, history[1].Type)
}

func TestOrderManager_CancelFilledOrderIsTerminal(t *testing.T) {
	m, _, _ := newOrderManager(t, execution.NewPaperBackend())
	trade := buy(100)
	trade.StopLoss = f64(49000)

	res := m.ExecuteTrade(context.Background(), trade, market(50000))
	require.True(t, res.Success)

	_, err := m.CancelOrder(context.Background(), res.Order.ID)
	assert.ErrorIs(t, err, ErrOrderTerminal)
}

func TestOrderManager_StopLossTakeProfit(t *testing.T) {
	m, _, _ := newOrderManager(t, execution.NewPaperBackend())
	trade := buy(100)
	trade.StopLoss = f64(49000)
	trade.TakeProfit = f64(52000)
	require.True(t, m.ExecuteTrade(context.Background(), trade, market(50000)).Success)

	assert.Empty(t, m.CheckStopLossTakeProfit(market(51000)))
	assert.Empty(t, m.CheckStopLossTakeProfit(models.MarketContext{Symbol: "ETHUSDT", Price: 10}))

	orders := m.CheckStopLossTakeProfit(market(48000))
	require.Len(t, orders, 1)
	assert.Equal(t, models.SideSell, orders[0].Side)
	assert.Equal(t, ReasonStopLoss, orders[0].Reason)
	assert.InDelta(t, 96.0, orders[0].Amount, 1e-9)

	orders = m.CheckStopLossTakeProfit(market(53000))
	require.Len(t, orders, 1)
	assert.Equal(t, ReasonTakeProfit, orders[0].Reason)
	assert.InDelta(t, 106.0, orders[0].Amount, 1e-9)

	assert.Len(t, m.ActiveOrders(), 1, "checking does not execute")
}

func TestOrderManager_ProtectiveScanClosesPosition(t *testing.T) {
	m, gate, pub := newOrderManager(t, execution.NewPaperBackend())
	ctx := context.Background()
	trade := buy(100)
	trade.StopLoss = f64(49000)
	require.True(t, m.ExecuteTrade(ctx, trade, market(50000)).Success)

	results := m.ProtectiveScan(ctx, market(48000))
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Message)
	assert.Equal(t, ReasonStopLoss, results[0].Order.Reason)

	assert.True(t, m.Positions()["BTCUSDT"].Size.IsZero())
	assert.Empty(t, m.ActiveOrders())
	assert.Equal(t, 2, gate.Status().Daily.TradeCount)
	assert.InDelta(t, 4.0, gate.Status().Daily.CumulativeLoss, 1e-9)
	assert.Len(t, pub.orderEvents(), 2)

	assert.Empty(t, m.ProtectiveScan(ctx, market(47000)))
}

func TestOrderManager_ConcurrentBuysSeeCommittedBalance(t *testing.T) {
	m, _, _ := newOrderManager(t, execution.NewPaperBackend())

	const workers = 8
	results := make([]models.TradeResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = m.ExecuteTrade(context.Background(), buy(250), market(50000))
		}(i)
	}
	wg.Wait()

	filled := 0
	for _, res := range results {
		if res.Success {
			filled++
		}
	}
	assert.Equal(t, 1, filled, "250 of the remaining 750 exceeds the position cap")
	assert.Equal(t, 750.0, m.Portfolio().Balance)
	assert.True(t, m.Positions()["BTCUSDT"].Size.Equal(decimal.RequireFromString("0.005")))
}

func TestOrderManager_SellWithoutPositionIsRejected(t *testing.T) {
	m, gate, pub := newOrderManager(t, execution.NewPaperBackend())
	sell := buy(100)
	sell.Side = models.SideSell

	res := m.ExecuteTrade(context.Background(), sell, market(50000))
	assert.False(t, res.Success)
	assert.Nil(t, res.Order)
	assert.Contains(t, res.Message, "no open position in BTCUSDT")
	assert.Equal(t, 1000.0, m.Portfolio().Balance)
	assert.Empty(t, m.Positions())
	assert.Empty(t, m.History(0))
	assert.Empty(t, pub.orderEvents())
	assert.Equal(t, 0, gate.Status().Daily.TradeCount)
}

func TestOrderManager_OversizedSellCreditsOnlyHeldQuantity(t *testing.T) {
	m, _, _ := newOrderManager(t, execution.NewPaperBackend())
	ctx := context.Background()
	require.True(t, m.ExecuteTrade(ctx, buy(100), market(50000)).Success)

	sell := buy(200)
	sell.Side = models.SideSell
	res := m.ExecuteTrade(ctx, sell, market(50000))
	require.True(t, res.Success, res.Message)

	assert.Equal(t, 1000.0, m.Portfolio().Balance)
	assert.True(t, m.Positions()["BTCUSDT"].Size.IsZero())
}

func TestOrderManager_FailedProtectiveCloseKeepsWatching(t *testing.T) {
	backend := &scriptedBackend{status: models.StatusFilled}
	m, _, _ := newOrderManager(t, backend)
	ctx := context.Background()
	trade := buy(100)
	trade.StopLoss = f64(49000)
	require.True(t, m.ExecuteTrade(ctx, trade, market(50000)).Success)

	backend.err = errors.New("venue down")
	results := m.ProtectiveScan(ctx, market(48000))
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	assert.Len(t, m.CheckStopLossTakeProfit(market(48000)), 1)
	assert.Len(t, m.ActiveOrders(), 1)
	assert.True(t, m.Positions()["BTCUSDT"].Size.Equal(decimal.RequireFromString("0.002")))

	backend.err = nil
	results = m.ProtectiveScan(ctx, market(48000))
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Message)
	assert.Empty(t, m.ActiveOrders())
	assert.True(t, m.Positions()["BTCUSDT"].Size.IsZero())
}

func TestOrderManager_InvalidTrade(t *testing.T) {
	m, _, _ := newOrderManager(t, execution.NewPaperBackend())

	res := m.ExecuteTrade(context.Background(), buy(0), market(50000))
	assert.False(t, res.Success)

	trade := buy(10)
	trade.Price = 0
	res = m.ExecuteTrade(context.Background(), trade, models.MarketContext{Symbol: "BTCUSDT"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no price")
}
