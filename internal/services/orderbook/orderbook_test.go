package orderbook

import (
	"testing"

	"CryptoPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levels(qty ...float64) []models.Level {
	out := make([]models.Level, len(qty))
	for i, q := range qty {
		out[i] = models.Level{Price: 100 + float64(i), Quantity: q}
	}
	return out
}

func TestImbalance(t *testing.T) {
	imb, ok := Imbalance(models.OrderBookSnapshot{Bids: levels(3, 3), Asks: levels(2)})
	require.True(t, ok)
	assert.InDelta(t, 0.5, imb, 1e-12)

	_, ok = Imbalance(models.OrderBookSnapshot{Bids: levels(1)})
	assert.False(t, ok, "empty side is no signal")

	_, ok = Imbalance(models.OrderBookSnapshot{Bids: levels(0), Asks: levels(0)})
	assert.False(t, ok, "zero depth is no signal")
}

func TestDetectWalls(t *testing.T) {
	// ten equal levels: each is exactly 0.10 of the side, not a wall
	even := levels(1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	w := DetectWalls(models.OrderBookSnapshot{Bids: even, Asks: even}, 0.10)
	assert.Nil(t, w.Buy)
	assert.Nil(t, w.Sell)
	assert.Equal(t, 0.0, w.Direction())

	w = DetectWalls(models.OrderBookSnapshot{Bids: even, Asks: levels(1, 1, 1, 1, 1, 1, 1, 1, 1, 2)}, 0.10)
	assert.Nil(t, w.Buy)
	require.NotNil(t, w.Sell)
	assert.InDelta(t, 2.0/11, *w.Sell, 1e-12)
	assert.Equal(t, -1.0, w.Direction())

	both := levels(1, 5)
	w = DetectWalls(models.OrderBookSnapshot{Bids: both, Asks: both}, 0.10)
	assert.Equal(t, 1.0, w.Direction(), "buy wall takes priority")
}

func TestCVDTracker_Divergence(t *testing.T) {
	tr := NewCVDTracker(100)
	for i := 0; i < 19; i++ {
		tr.Update(2, 1, 100-float64(i))
	}
	_, ok := tr.Divergence()
	assert.False(t, ok, "needs 20 points")

	tr.Update(2, 1, 81)
	div, ok := tr.Divergence()
	require.True(t, ok)
	assert.Equal(t, 1.0, div, "cvd rising while price falls is bullish")

	bear := NewCVDTracker(100)
	for i := 0; i < 20; i++ {
		bear.Update(1, 2, 100+float64(i))
	}
	div, _ = bear.Divergence()
	assert.Equal(t, -1.0, div)

	same := NewCVDTracker(100)
	for i := 0; i < 20; i++ {
		same.Update(2, 1, 100+float64(i))
	}
	div, ok = same.Divergence()
	assert.True(t, ok)
	assert.Equal(t, 0.0, div)
}

func TestCVDTracker_KeepsHistoryBounded(t *testing.T) {
	tr := NewCVDTracker(100)
	for i := 0; i < 150; i++ {
		tr.Update(1, 0, 100)
	}
	assert.Equal(t, 100, tr.Len())
	assert.Equal(t, 150.0, tr.Value())
}

func TestMicrostructure(t *testing.T) {
	book := models.OrderBookSnapshot{Bids: levels(1, 5), Asks: levels(1, 1, 1, 1, 1, 1, 1, 1, 1, 1)}
	got := Microstructure(book, 0.10, nil)
	// bids 6, asks 10: imbalance -0.25; the 5 lot is a buy wall
	assert.InDelta(t, 0.6*-0.25+0.3, got, 1e-12)

	tr := NewCVDTracker(100)
	for i := 0; i < 20; i++ {
		tr.Update(2, 1, 100-float64(i))
	}
	assert.InDelta(t, 0.6*-0.25+0.3+0.1, Microstructure(book, 0.10, tr), 1e-12)

	heavy := models.OrderBookSnapshot{Bids: levels(100), Asks: levels(1e-9)}
	assert.LessOrEqual(t, Microstructure(heavy, 0.10, tr), 1.0)
}

func TestTrackers(t *testing.T) {
	ts := NewTrackers(100)
	_, ok := ts.Lookup("BTCUSDT")
	assert.False(t, ok)
	a := ts.For("BTCUSDT")
	assert.Same(t, a, ts.For("BTCUSDT"))
}
