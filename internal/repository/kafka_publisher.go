package repository

import (
	"context"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
)

// producer is the part of pkg/kafka.Producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher ships composites keyed by symbol and order events keyed by
// portfolio, so each stream stays ordered within its partition.
type KafkaPublisher struct {
	producer     producer
	signalsTopic string
	ordersTopic  string
}

func NewKafkaPublisher(p producer, signalsTopic, ordersTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, signalsTopic: signalsTopic, ordersTopic: ordersTopic}
}

func (p *KafkaPublisher) PublishComposite(ctx context.Context, c *models.Composite) error {
	return p.producer.Publish(ctx, p.signalsTopic, []byte(c.Symbol), c)
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, e *models.OrderEvent) error {
	return p.producer.Publish(ctx, p.ordersTopic, []byte(e.Order.Portfolio), e)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
