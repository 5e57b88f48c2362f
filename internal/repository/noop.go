package repository

import (
	"context"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
)

var (
	_ domrepo.EventPublisher    = NoopPublisher{}
	_ domrepo.CompositeStore    = NoopStore{}
	_ domrepo.OrderHistoryStore = NoopStore{}
)

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishComposite(context.Context, *models.Composite) error   { return nil }
func (NoopPublisher) PublishOrderEvent(context.Context, *models.OrderEvent) error { return nil }
func (NoopPublisher) Close() error                                                { return nil }

// NoopStore is used when ClickHouse is disabled. It keeps nothing.
type NoopStore struct{}

func (NoopStore) Init(context.Context) error                                   { return nil }
func (NoopStore) SaveComposite(context.Context, *models.Composite) error       { return nil }
func (NoopStore) AppendOrderEvents(context.Context, []models.OrderEvent) error { return nil }

func (NoopStore) ListOrderEvents(context.Context, string, int) ([]models.OrderEvent, error) {
	return nil, nil
}

// ArchivePublisher stands in for Kafka when it is disabled: order events go
// straight to the archive instead of through the orders topic consumer.
// Composites are already archived by the composite service.
type ArchivePublisher struct {
	NoopPublisher
	store domrepo.OrderHistoryStore
}

var _ domrepo.EventPublisher = (*ArchivePublisher)(nil)

func NewArchivePublisher(store domrepo.OrderHistoryStore) *ArchivePublisher {
	return &ArchivePublisher{store: store}
}

func (p *ArchivePublisher) PublishOrderEvent(ctx context.Context, e *models.OrderEvent) error {
	return p.store.AppendOrderEvents(ctx, []models.OrderEvent{*e})
}
