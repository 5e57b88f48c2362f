package providers

import (
	"context"
	"fmt"

	"CryptoPulse/internal/domain/service"
	"CryptoPulse/internal/services/features"
)

var _ service.SignalProvider = (*AltData)(nil)

// AltData averages search-trend and sentiment readings into [-0.5, 0.5].
type AltData struct {
	trends    service.SignalProvider
	sentiment service.SignalProvider
}

func NewAltData(trends, sentiment service.SignalProvider) *AltData {
	return &AltData{trends: trends, sentiment: sentiment}
}

func (a *AltData) Name() string { return "alt_data" }

func (a *AltData) Signal(ctx context.Context, symbol string) (float64, error) {
	tr, err := a.trends.Signal(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("alt_data trends: %w", err)
	}
	se, err := a.sentiment.Signal(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("alt_data sentiment: %w", err)
	}
	return features.Clamp(0.5*tr+0.5*se, -0.5, 0.5), nil
}
