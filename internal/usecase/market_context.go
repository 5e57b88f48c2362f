package usecase

import (
	"context"
	"time"

	"CryptoPulse/internal/domain/models"
	domsvc "CryptoPulse/internal/domain/service"
	"CryptoPulse/internal/service/window"
	"CryptoPulse/pkg/logger"
)

// MarketContextBuilder assembles the readings the risk gate consumes. Any
// reading that cannot be obtained stays nil so the matching check is skipped.
type MarketContextBuilder struct {
	store     *window.Store
	sentiment domsvc.SignalProvider
	oiChange  domsvc.SignalProvider
	timeout   time.Duration
	log       *logger.Logger
}

// NewMarketContextBuilder accepts nil providers.
func NewMarketContextBuilder(store *window.Store, sentiment, oiChange domsvc.SignalProvider, timeout time.Duration, log *logger.Logger) *MarketContextBuilder {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MarketContextBuilder{store: store, sentiment: sentiment, oiChange: oiChange, timeout: timeout, log: log}
}

func (b *MarketContextBuilder) Build(ctx context.Context, symbol string) models.MarketContext {
	symbol = models.NormalizeSymbol(symbol)
	mc := models.MarketContext{Symbol: symbol}
	if s, ok := b.store.Latest(symbol); ok {
		mc.Price = s.Price
	}
	if v, err := b.store.Volatility(symbol); err == nil {
		mc.Volatility = &v
	}
	mc.Sentiment = b.read(ctx, b.sentiment, symbol)
	mc.OIChange = b.read(ctx, b.oiChange, symbol)
	return mc
}

func (b *MarketContextBuilder) read(ctx context.Context, p domsvc.SignalProvider, symbol string) *float64 {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	v, err := p.Signal(ctx, symbol)
	if err != nil {
		b.log.Debug("risk context reading unavailable",
			logger.String("provider", p.Name()),
			logger.String("symbol", symbol),
			logger.Error(err))
		return nil
	}
	return &v
}
