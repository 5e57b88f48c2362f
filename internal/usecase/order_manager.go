package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	domsvc "CryptoPulse/internal/domain/service"
	"CryptoPulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderTerminal = errors.New("order already in a terminal state")
)

const (
	ReasonStopLoss   = "Stop loss triggered"
	ReasonTakeProfit = "Take profit triggered"
)

type OrderManagerOption func(*OrderManager)

func WithExecutionTimeout(d time.Duration) OrderManagerOption {
	return func(m *OrderManager) {
		if d > 0 {
			m.execTimeout = d
		}
	}
}

// WithLatencyWarning sets the execution latency above which a warning is logged.
func WithLatencyWarning(d time.Duration) OrderManagerOption {
	return func(m *OrderManager) {
		if d > 0 {
			m.latencyWarn = d
		}
	}
}

// OrderManager owns orders, positions and cash for one portfolio. Risk check,
// execution, position update and trade recording run under one lock.
type OrderManager struct {
	portfolio   string
	gate        *RiskGate
	backend     domsvc.ExecutionBackend
	publisher   domrepo.EventPublisher
	metrics     domrepo.Metrics
	log         *logger.Logger
	execTimeout time.Duration
	latencyWarn time.Duration
	now         func() time.Time
	newID       func() string

	mu        sync.Mutex
	balance   decimal.Decimal
	active    map[string]*models.Order
	history   []models.OrderEvent
	positions map[string]*models.Position
}

func NewOrderManager(
	portfolio string,
	initialBalance float64,
	gate *RiskGate,
	backend domsvc.ExecutionBackend,
	publisher domrepo.EventPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...OrderManagerOption,
) *OrderManager {
	m := &OrderManager{
		portfolio:   portfolio,
		gate:        gate,
		backend:     backend,
		publisher:   publisher,
		metrics:     metrics,
		log:         log.With(logger.String("portfolio", portfolio), logger.String("backend", backend.Name())),
		execTimeout: 5 * time.Second,
		latencyWarn: 100 * time.Millisecond,
		now:         time.Now,
		newID:       uuid.NewString,
		balance:     decimal.NewFromFloat(initialBalance),
		active:      make(map[string]*models.Order),
		positions:   make(map[string]*models.Position),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Portfolio is the current cash balance as seen by the risk gate.
func (m *OrderManager) Portfolio() models.Portfolio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.portfolioLocked()
}

// ExecuteTrade gates, executes and books one trade. The gate sees the cash
// balance as of the lock, so concurrent trades are checked one after another.
// A risk rejection creates no order. Suggested adjustments from the gate are
// reported, not applied.
func (m *OrderManager) ExecuteTrade(ctx context.Context, trade models.TradeSignal, market models.MarketContext) models.TradeResult {
	m.mu.Lock()
	res, ev := m.executeLocked(ctx, trade, market, true, "")
	m.mu.Unlock()

	if ev != nil {
		m.publish(ctx, ev)
	}
	return res
}

func (m *OrderManager) portfolioLocked() models.Portfolio {
	bal, _ := m.balance.Float64()
	return models.Portfolio{ID: m.portfolio, Balance: bal}
}

func (m *OrderManager) executeLocked(ctx context.Context, trade models.TradeSignal, market models.MarketContext, gated bool, reason string) (models.TradeResult, *models.OrderEvent) {
	start := m.now()
	trade.Pair = models.NormalizeSymbol(trade.Pair)

	if trade.Amount <= 0 {
		return models.TradeResult{Message: "trade amount must be positive"}, nil
	}
	price := market.Price
	if price <= 0 {
		price = trade.Price
	}
	if price <= 0 {
		return models.TradeResult{Message: "no price available for " + trade.Pair}, nil
	}
	if trade.Side == models.SideSell {
		if pos, ok := m.positions[trade.Pair]; !ok || !pos.Size.IsPositive() {
			return models.TradeResult{Message: "no open position in " + trade.Pair}, nil
		}
	}

	var risk models.RiskCheckResult
	if gated {
		risk = m.gate.Check(trade, m.portfolioLocked(), market)
		if !risk.Allowed {
			return models.TradeResult{Risk: risk, Message: "Safety checks failed"}, nil
		}
	}

	order := &models.Order{
		ID:         m.newID(),
		Portfolio:  m.portfolio,
		Pair:       trade.Pair,
		Side:       trade.Side,
		Type:       models.OrderMarket,
		Amount:     trade.Amount,
		Price:      price,
		Status:     models.StatusPending,
		StopLoss:   trade.StopLoss,
		TakeProfit: trade.TakeProfit,
		Strategy:   trade.Strategy,
		Confidence: trade.Confidence,
		Reason:     reason,
		CreatedAt:  start,
		UpdatedAt:  start,
	}
	m.active[order.ID] = order
	m.transition(order, models.StatusOpen)

	execCtx, cancel := context.WithTimeout(ctx, m.execTimeout)
	report, err := m.backend.Submit(execCtx, order)
	cancel()

	latency := m.now().Sub(start)
	order.LatencyMs = float64(latency.Microseconds()) / 1000
	m.metrics.RecordLatency("order_execution", latency.Seconds())
	if latency > m.latencyWarn {
		m.log.Warn("high execution latency",
			logger.String("order_id", order.ID),
			logger.Duration("latency_ms", latency))
	}

	ev := &models.OrderEvent{Order: *order, At: m.now()}
	switch {
	case err != nil:
		order.Error = err.Error()
		m.transition(order, models.StatusFailed)
		delete(m.active, order.ID)
		ev.Type = models.EventFailed
	case report.Status == models.StatusFilled:
		order.FilledPrice = report.FilledPrice
		if order.FilledPrice <= 0 {
			order.FilledPrice = order.Price
		}
		order.VenueID = report.VenueID
		filledAt := m.now()
		order.FilledAt = &filledAt
		m.transition(order, models.StatusFilled)
		if order.Side != models.SideBuy || (order.StopLoss == nil && order.TakeProfit == nil) {
			delete(m.active, order.ID)
		}
		ev.Type = models.EventFilled
		ev.RealizedPnL = m.applyFill(order)
		m.gate.RecordTrade(trade, ev.RealizedPnL)
	case report.Status == models.StatusOpen:
		order.VenueID = report.VenueID
		ev.Type = models.EventAccepted
		ev.Order = *order
		m.history = append(m.history, *ev)
		m.metrics.RecordOrder(order.Side, order.Status)
		m.log.Info("order resting at venue", logger.String("order_id", order.ID))
		return m.result(order, risk, start, "Order accepted"), ev
	default:
		order.Error = fmt.Sprintf("venue returned %s", report.Status)
		m.transition(order, models.StatusRejected)
		delete(m.active, order.ID)
		ev.Type = models.EventFailed
	}

	ev.Order = *order
	m.history = append(m.history, *ev)
	m.metrics.RecordOrder(order.Side, order.Status)

	if order.Status != models.StatusFilled {
		m.log.Error("order failed",
			logger.String("order_id", order.ID),
			logger.String("pair", order.Pair),
			logger.String("error", order.Error))
		res := m.result(order, risk, start, "Execution failed: "+order.Error)
		res.Success = false
		return res, ev
	}
	m.log.Info("trade executed",
		logger.String("order_id", order.ID),
		logger.String("side", string(order.Side)),
		logger.String("pair", order.Pair),
		logger.Float64("amount", order.Amount),
		logger.Float64("filled_price", order.FilledPrice))
	return m.result(order, risk, start, fmt.Sprintf("Trade executed: %s %.2f %s", order.Side, order.Amount, order.Pair)), ev
}

func (m *OrderManager) result(o *models.Order, risk models.RiskCheckResult, start time.Time, msg string) models.TradeResult {
	cp := *o
	return models.TradeResult{
		Success:   true,
		Order:     &cp,
		Risk:      risk,
		Message:   msg,
		LatencyMs: float64(m.now().Sub(start).Microseconds()) / 1000,
	}
}

// transition moves o forward. Terminal states never change.
func (m *OrderManager) transition(o *models.Order, to models.OrderStatus) {
	if o.Status.Terminal() {
		return
	}
	o.Status = to
	o.UpdatedAt = m.now()
}

// applyFill updates the position and cash for a filled order and returns the
// realized PnL of a sell.
func (m *OrderManager) applyFill(o *models.Order) float64 {
	pos, ok := m.positions[o.Pair]
	if !ok {
		pos = &models.Position{Symbol: o.Pair}
		m.positions[o.Pair] = pos
	}
	amount := decimal.NewFromFloat(o.Amount)
	fill := decimal.NewFromFloat(o.FilledPrice)
	qty := amount.Div(fill)
	pos.UpdatedAt = m.now()

	if o.Side == models.SideBuy {
		pos.Size = pos.Size.Add(qty)
		pos.TotalCost = pos.TotalCost.Add(amount)
		pos.AvgEntryPrice = pos.TotalCost.Div(pos.Size)
		m.balance = m.balance.Sub(amount)
		return 0
	}

	// only what is held is sold and credited
	sold := decimal.Min(qty, pos.Size)
	pnl := fill.Sub(pos.AvgEntryPrice).Mul(sold)
	pos.Size = pos.Size.Sub(sold)
	if pos.Size.IsZero() {
		pos.AvgEntryPrice = decimal.Zero
		pos.TotalCost = decimal.Zero
	} else {
		pos.TotalCost = pos.AvgEntryPrice.Mul(pos.Size)
	}
	m.balance = m.balance.Add(sold.Mul(fill))
	realized, _ := pnl.Float64()
	return realized
}

// CheckStopLossTakeProfit returns closing sells for filled buy orders on
// market.Symbol whose stop loss or take profit the price has crossed. The
// orders are built but not executed.
func (m *OrderManager) CheckStopLossTakeProfit(market models.MarketContext) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	triggered := m.triggeredLocked(market)
	out := make([]models.Order, 0, len(triggered))
	for _, t := range triggered {
		out = append(out, t.close)
	}
	return out
}

type protectiveTrigger struct {
	source *models.Order
	close  models.Order
}

func (m *OrderManager) triggeredLocked(market models.MarketContext) []protectiveTrigger {
	sym := models.NormalizeSymbol(market.Symbol)
	price := market.Price
	if price <= 0 {
		return nil
	}
	var out []protectiveTrigger
	for _, o := range m.sortedActiveLocked() {
		if o.Status != models.StatusFilled || o.Side != models.SideBuy || o.Pair != sym {
			continue
		}
		var reason string
		switch {
		case o.StopLoss != nil && price <= *o.StopLoss:
			reason = ReasonStopLoss
		case o.TakeProfit != nil && price >= *o.TakeProfit:
			reason = ReasonTakeProfit
		default:
			continue
		}
		qty := o.Amount / o.FilledPrice
		out = append(out, protectiveTrigger{
			source: o,
			close: models.Order{
				Portfolio:  m.portfolio,
				Pair:       o.Pair,
				Side:       models.SideSell,
				Type:       models.OrderMarket,
				Amount:     qty * price,
				Price:      price,
				Status:     models.StatusPending,
				Strategy:   o.Strategy,
				Confidence: o.Confidence,
				Reason:     reason,
				CreatedAt:  m.now(),
			},
		})
	}
	return out
}

// ProtectiveScan executes the closing orders for crossed stop loss and take
// profit levels. A triggering order stops being watched only once its close
// fills, so a failed close is retried on the next scan. Closing sells reduce
// exposure and are not gated.
func (m *OrderManager) ProtectiveScan(ctx context.Context, market models.MarketContext) []models.TradeResult {
	m.mu.Lock()
	var (
		results []models.TradeResult
		events  []*models.OrderEvent
	)
	for _, t := range m.triggeredLocked(market) {
		res, ev := m.executeLocked(ctx, models.TradeSignal{
			Pair:       t.close.Pair,
			Side:       models.SideSell,
			Amount:     t.close.Amount,
			Price:      t.close.Price,
			Strategy:   t.close.Strategy,
			Confidence: t.close.Confidence,
		}, market, false, t.close.Reason)
		if res.Order != nil && res.Order.Status == models.StatusFilled {
			delete(m.active, t.source.ID)
		}
		m.log.Info("protective order executed",
			logger.String("trigger_order", t.source.ID),
			logger.String("reason", t.close.Reason),
			logger.Bool("success", res.Success))
		results = append(results, res)
		if ev != nil {
			events = append(events, ev)
		}
	}
	m.mu.Unlock()

	for _, ev := range events {
		m.publish(ctx, ev)
	}
	return results
}

// CancelOrder cancels a pending or open order.
func (m *OrderManager) CancelOrder(ctx context.Context, id string) (*models.Order, error) {
	m.mu.Lock()
	o, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return nil, ErrOrderNotFound
	}
	if o.Status.Terminal() {
		m.mu.Unlock()
		return nil, ErrOrderTerminal
	}
	if c, ok := m.backend.(domsvc.OrderCanceler); ok {
		cctx, cancel := context.WithTimeout(ctx, m.execTimeout)
		err := c.Cancel(cctx, o)
		cancel()
		if err != nil {
			m.mu.Unlock()
			return nil, err
		}
	}
	m.transition(o, models.StatusCancelled)
	delete(m.active, id)
	ev := &models.OrderEvent{Type: models.EventCancelled, Order: *o, At: m.now()}
	m.history = append(m.history, *ev)
	m.metrics.RecordOrder(o.Side, o.Status)
	cp := *o
	m.mu.Unlock()

	m.log.Info("order cancelled", logger.String("order_id", id))
	m.publish(ctx, ev)
	return &cp, nil
}

func (m *OrderManager) sortedActiveLocked() []*models.Order {
	out := make([]*models.Order, 0, len(m.active))
	for _, o := range m.active {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// ActiveOrders lists open orders and filled orders still under SL/TP watch.
func (m *OrderManager) ActiveOrders() []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.sortedActiveLocked()
	out := make([]models.Order, len(src))
	for i, o := range src {
		out[i] = *o
	}
	return out
}

// History returns up to limit most recent order events, oldest first. A
// non-positive limit returns everything.
func (m *OrderManager) History(limit int) []models.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]models.OrderEvent(nil), h...)
}

func (m *OrderManager) Positions() map[string]models.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Position, len(m.positions))
	for k, p := range m.positions {
		out[k] = *p
	}
	return out
}

func (m *OrderManager) publish(ctx context.Context, ev *models.OrderEvent) {
	if err := m.publisher.PublishOrderEvent(ctx, ev); err != nil {
		m.metrics.RecordError("order_publish")
		m.log.Warn("publish order event failed", logger.String("order_id", ev.Order.ID), logger.Error(err))
	}
}
