package service

import (
	"context"

	"CryptoPulse/internal/domain/models"
)

// SignalProvider returns an external reading for a symbol, e.g. sentiment or open interest change.
type SignalProvider interface {
	Name() string
	Signal(ctx context.Context, symbol string) (float64, error)
}

// VolatilityPredictor estimates the probability of a volatility spike in [0,1].
type VolatilityPredictor interface {
	Name() string
	Predict(f models.VolatilityFeatures) float64
}

// ExecutionBackend dispatches an order to a venue.
type ExecutionBackend interface {
	Name() string
	Submit(ctx context.Context, o *models.Order) (models.ExecutionReport, error)
}

// OrderCanceler is implemented by backends that can withdraw a resting order.
type OrderCanceler interface {
	Cancel(ctx context.Context, o *models.Order) error
}
