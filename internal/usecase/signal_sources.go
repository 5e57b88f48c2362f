package usecase

import (
	"context"
	"errors"
	"fmt"

	"CryptoPulse/internal/domain/models"
	domsvc "CryptoPulse/internal/domain/service"
	"CryptoPulse/internal/service/window"
	"CryptoPulse/internal/services/features"
	"CryptoPulse/internal/services/orderbook"
)

// ErrNoBook is returned by book-based sources before the first snapshot arrives.
var ErrNoBook = errors.New("no order book for symbol")

// SpeedSource reads volatility expansion. With too few points for expansion
// it falls back to the window trend direction when volatility exceeds volGate.
func SpeedSource(store *window.Store, volGate float64) SourceFunc {
	return func(_ context.Context, symbol string) (float64, error) {
		v, err := store.Expansion(symbol)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, window.ErrInsufficientData) {
			return 0, err
		}
		vol, err := store.Volatility(symbol)
		if err != nil {
			return 0, fmt.Errorf("speed: %w", err)
		}
		if vol > volGate {
			return features.Sign(features.Trend(store.Prices(symbol))), nil
		}
		return 0, nil
	}
}

// MicrostructureSource blends the latest book with the symbol's CVD divergence.
func MicrostructureSource(store *window.Store, cvd *orderbook.Trackers, wallThreshold float64) SourceFunc {
	return func(_ context.Context, symbol string) (float64, error) {
		book, ok := store.Book(symbol)
		if !ok {
			return 0, ErrNoBook
		}
		tr, _ := cvd.Lookup(symbol)
		return orderbook.Microstructure(book, wallThreshold, tr), nil
	}
}

// ProviderSource adapts an external provider.
func ProviderSource(p domsvc.SignalProvider) SourceFunc {
	return p.Signal
}

// VolatilityInputs gathers predictor features from local state and optional
// external providers. Provider failures leave their feature at zero.
type VolatilityInputs struct {
	Store     *window.Store
	CVD       *orderbook.Trackers
	Sentiment domsvc.SignalProvider
	Trends    domsvc.SignalProvider
	OIChange  domsvc.SignalProvider
}

func (in VolatilityInputs) Features(ctx context.Context, symbol string) (models.VolatilityFeatures, error) {
	vol, err := in.Store.Volatility(symbol)
	if err != nil {
		return models.VolatilityFeatures{}, fmt.Errorf("volatility: %w", err)
	}
	f := models.VolatilityFeatures{Volatility: vol}
	if tr, ok := in.CVD.Lookup(symbol); ok {
		f.CVD, _ = tr.Divergence()
	}
	if book, ok := in.Store.Book(symbol); ok {
		f.Imbalance, _ = orderbook.Imbalance(book)
	}
	f.Sentiment = optional(ctx, in.Sentiment, symbol)
	f.Trends = optional(ctx, in.Trends, symbol)
	f.OIChange = optional(ctx, in.OIChange, symbol)
	return f, nil
}

func optional(ctx context.Context, p domsvc.SignalProvider, symbol string) float64 {
	if p == nil {
		return 0
	}
	v, err := p.Signal(ctx, symbol)
	if err != nil {
		return 0
	}
	return v
}

// VolatilitySource runs the predictor over gathered features. Its output is a
// probability in [0,1].
func VolatilitySource(in VolatilityInputs, predictor domsvc.VolatilityPredictor) SourceFunc {
	return func(ctx context.Context, symbol string) (float64, error) {
		f, err := in.Features(ctx, symbol)
		if err != nil {
			return 0, err
		}
		return predictor.Predict(f), nil
	}
}
