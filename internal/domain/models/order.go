package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderMarket     OrderType = "MARKET"
	OrderLimit      OrderType = "LIMIT"
	OrderStopLoss   OrderType = "STOP_LOSS"
	OrderTakeProfit OrderType = "TAKE_PROFIT"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusOpen      OrderStatus = "OPEN"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
	StatusFailed    OrderStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusFailed:
		return true
	}
	return false
}

type Order struct {
	ID          string      `json:"id"`
	Portfolio   string      `json:"portfolio"`
	Pair        string      `json:"pair"`
	Side        Side        `json:"side"`
	Type        OrderType   `json:"type"`
	Amount      float64     `json:"amount"`
	Price       float64     `json:"price"`
	FilledPrice float64     `json:"filled_price,omitempty"`
	Status      OrderStatus `json:"status"`
	StopLoss    *float64    `json:"stop_loss,omitempty"`
	TakeProfit  *float64    `json:"take_profit,omitempty"`
	Strategy    string      `json:"strategy"`
	Confidence  float64     `json:"confidence"`
	Reason      string      `json:"reason,omitempty"`
	Error       string      `json:"error,omitempty"`
	VenueID     string      `json:"venue_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	FilledAt    *time.Time  `json:"filled_at,omitempty"`
	LatencyMs   float64     `json:"latency_ms"`
}

// Position is the current holding for one symbol. Size never goes negative.
type Position struct {
	Symbol        string          `json:"symbol"`
	Size          decimal.Decimal `json:"size"`
	AvgEntryPrice decimal.Decimal `json:"avg_entry_price"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ExecutionReport is what a venue returns for a dispatched order.
type ExecutionReport struct {
	Status      OrderStatus `json:"status"`
	FilledPrice float64     `json:"filled_price"`
	VenueID     string      `json:"venue_id"`
}

type TradeResult struct {
	Success   bool            `json:"success"`
	Order     *Order          `json:"order,omitempty"`
	Risk      RiskCheckResult `json:"risk_check"`
	Message   string          `json:"message"`
	LatencyMs float64         `json:"latency_ms"`
}

type OrderEventType string

const (
	EventAccepted  OrderEventType = "accepted"
	EventFilled    OrderEventType = "filled"
	EventFailed    OrderEventType = "failed"
	EventCancelled OrderEventType = "cancelled"
)

// OrderEvent is one entry of the append-only order history. It is also the
// payload published on the orders topic.
type OrderEvent struct {
	Type        OrderEventType `json:"type"`
	Order       Order          `json:"order"`
	RealizedPnL float64        `json:"realized_pnl"`
	At          time.Time      `json:"at"`
}
