package repository

import (
	"context"
	"time"

	"CryptoPulse/internal/domain/models"
)

// EventPublisher ships composites and order events to the message bus.
type EventPublisher interface {
	PublishComposite(ctx context.Context, c *models.Composite) error
	PublishOrderEvent(ctx context.Context, e *models.OrderEvent) error
	Close() error
}

// OrderHistoryStore persists the order event log.
type OrderHistoryStore interface {
	Init(ctx context.Context) error
	AppendOrderEvents(ctx context.Context, events []models.OrderEvent) error
	ListOrderEvents(ctx context.Context, portfolio string, limit int) ([]models.OrderEvent, error)
}

// CompositeStore keeps a history of fused signals.
type CompositeStore interface {
	SaveComposite(ctx context.Context, c *models.Composite) error
}

// SignalCache holds the most recent composite per symbol for other readers
// of the same Redis.
type SignalCache interface {
	PutComposite(ctx context.Context, c *models.Composite, ttl time.Duration) error
}

// RiskStateStore snapshots the risk gate between restarts.
type RiskStateStore interface {
	SaveRiskState(ctx context.Context, portfolio string, st models.RiskStatus) error
	LoadRiskState(ctx context.Context, portfolio string) (*models.RiskStatus, error)
}

type Metrics interface {
	RecordFeedState(feed string, state models.FeedState)
	RecordMessage(feed, kind string)
	RecordParseDrop(feed string)
	RecordReconnect(feed string)
	RecordLastPrice(symbol string, price float64)
	RecordSignal(source, symbol string, value float64)
	RecordComposite(symbol string, value float64, action models.Action)
	RecordSourceFailure(source string)
	RecordRiskDecision(allowed bool)
	RecordOrder(side models.Side, status models.OrderStatus)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
