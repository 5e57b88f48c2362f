package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/logger"
	"CryptoPulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyDispatcher struct {
	mu       sync.Mutex
	failures int
	got      []models.MarketEvent
}

func (d *flakyDispatcher) Dispatch(_ context.Context, ev models.MarketEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures > 0 {
		d.failures--
		return errors.New("inbox full")
	}
	d.got = append(d.got, ev)
	return nil
}

func (d *flakyDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.got)
}

func tick(sym string, price float64) models.MarketEvent {
	return models.MarketEvent{Sample: &models.PriceSample{Symbol: sym, Timestamp: time.Now(), Price: price, Volume: 1}}
}

func TestPipeline_Validates(t *testing.T) {
	d := &flakyDispatcher{}
	p := NewRealtimePipeline(d, metrics.Nop{}, logger.Nop())

	assert.Error(t, p.Process(context.Background(), models.MarketEvent{}))
	assert.Error(t, p.Process(context.Background(), tick("", 1)))
	assert.Error(t, p.Process(context.Background(), tick("BTCUSDT", 0)))
	assert.NoError(t, p.Process(context.Background(), tick("BTCUSDT", 1)))
	assert.Equal(t, 1, d.count())
}

func TestPipeline_ThrottlesPerSymbolAndKind(t *testing.T) {
	d := &flakyDispatcher{}
	p := NewRealtimePipeline(d, metrics.Nop{}, logger.Nop(), WithMaxRPS(2))

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Process(context.Background(), tick("BTCUSDT", 1)))
	}
	assert.Equal(t, 2, d.count())

	require.NoError(t, p.Process(context.Background(), tick("ETHUSDT", 1)))
	require.NoError(t, p.Process(context.Background(), models.MarketEvent{Book: &models.OrderBookSnapshot{Symbol: "BTCUSDT"}}))
	assert.Equal(t, 4, d.count())
}

func TestPipeline_BuffersAndRedelivers(t *testing.T) {
	d := &flakyDispatcher{failures: 2}
	p := NewRealtimePipeline(d, metrics.Nop{}, logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	p.Submit(ctx, "binance-ticker", []models.MarketEvent{tick("BTCUSDT", 1)})
	require.Eventually(t, func() bool { return d.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p.Buffered())
}
