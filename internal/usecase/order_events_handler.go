package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	pkgkafka "CryptoPulse/pkg/kafka"
)

var errMissingOrderID = errors.New("order event without order id")

// OrderEventsHandler archives order events consumed from the orders topic.
type OrderEventsHandler struct {
	topic   string
	store   domrepo.OrderHistoryStore
	metrics domrepo.Metrics
}

func NewOrderEventsHandler(topic string, store domrepo.OrderHistoryStore, metrics domrepo.Metrics) *OrderEventsHandler {
	return &OrderEventsHandler{topic: topic, store: store, metrics: metrics}
}

func (h *OrderEventsHandler) Topic() string { return h.topic }

func (h *OrderEventsHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.OrderEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if ev.Order.ID == "" {
		h.metrics.RecordError("consumer_unmarshal")
		return errMissingOrderID
	}
	if !ev.At.IsZero() {
		h.metrics.RecordLatency("order_event_lag", time.Since(ev.At).Seconds())
	}

	start := time.Now()
	err := h.store.AppendOrderEvents(ctx, []models.OrderEvent{ev})
	h.metrics.RecordLatency("order_archive_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*OrderEventsHandler)(nil)
