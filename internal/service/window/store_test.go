package window

import (
	"testing"
	"time"

	"CryptoPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sample(offset time.Duration, price float64) models.PriceSample {
	return models.PriceSample{Symbol: "BTCUSDT", Timestamp: t0.Add(offset), Price: price, Volume: 1}
}

func TestInsert_CountCap(t *testing.T) {
	s := NewStore(WithMaxCount(5), WithSpan(time.Hour))
	for i := 0; i < 12; i++ {
		s.Insert("BTCUSDT", sample(time.Duration(i)*time.Millisecond, float64(100+i)))
	}
	assert.Equal(t, 5, s.Len("BTCUSDT"))
	assert.Equal(t, []float64{107, 108, 109, 110, 111}, s.Prices("BTCUSDT"))
}

func TestInsert_TimeEviction(t *testing.T) {
	s := NewStore(WithSpan(30 * time.Second))
	s.Insert("BTCUSDT", sample(0, 100))
	s.Insert("BTCUSDT", sample(10*time.Second, 101))
	s.Insert("BTCUSDT", sample(30*time.Second, 102))
	assert.Equal(t, 3, s.Len("BTCUSDT"), "exactly now-span is retained")

	s.Insert("BTCUSDT", sample(41*time.Second, 103))
	assert.Equal(t, []float64{102, 103}, s.Prices("BTCUSDT"))

	latest, ok := s.Latest("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 103.0, latest.Price)
}

func TestInsert_LateSampleEvictedAgainstNewest(t *testing.T) {
	s := NewStore(WithSpan(30 * time.Second))
	s.Insert("BTCUSDT", sample(100*time.Second, 100))
	s.Insert("BTCUSDT", sample(50*time.Second, 50))
	s.Insert("BTCUSDT", sample(101*time.Second, 101))

	samples := s.Samples("BTCUSDT")
	require.Len(t, samples, 2)
	cutoff := t0.Add(71 * time.Second)
	for _, smp := range samples {
		assert.False(t, smp.Timestamp.Before(cutoff), smp.Timestamp)
	}
	assert.Equal(t, []float64{100, 101}, s.Prices("BTCUSDT"))
}

func TestInsert_LateSampleInsideSpanKeepsArrivalOrder(t *testing.T) {
	s := NewStore(WithSpan(30 * time.Second))
	s.Insert("BTCUSDT", sample(100*time.Second, 100))
	s.Insert("BTCUSDT", sample(90*time.Second, 90))
	assert.Equal(t, []float64{100, 90}, s.Prices("BTCUSDT"))

	s.Insert("BTCUSDT", sample(125*time.Second, 125))

	assert.Equal(t, []float64{100, 125}, s.Prices("BTCUSDT"))
}

func TestVolatility_InsufficientData(t *testing.T) {
	s := NewStore(WithMinPoints(10))
	for i := 0; i < 9; i++ {
		s.Insert("BTCUSDT", sample(time.Duration(i)*time.Second, 100))
	}
	_, err := s.Volatility("BTCUSDT")
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = s.Volatility("ETHUSDT")
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestVolatility_Value(t *testing.T) {
	s := NewStore(WithMinPoints(3))
	for i, p := range []float64{100, 110, 99, 108.9} {
		s.Insert("BTCUSDT", sample(time.Duration(i)*time.Second, p))
	}
	v, err := s.Volatility("BTCUSDT")
	require.NoError(t, err)
	// returns +0.1, -0.1, +0.1
	assert.InDelta(t, 0.0942809, v, 1e-6)
}

func TestExpansion(t *testing.T) {
	calm := []float64{100, 100.01, 100, 100.01, 100, 100.01}
	wild := []float64{100, 105, 98, 106, 97, 108}

	tests := []struct {
		name   string
		prices []float64
		want   float64
	}{
		{"bullish expansion", append(append([]float64{}, calm...), wild...), 1},
		{"bearish expansion", append(append([]float64{}, calm...), 100, 95, 101, 93, 99, 90), -1},
		{"contraction", append(append([]float64{}, wild...), calm...), 0},
		{"flat", []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100, 100}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(WithMinPoints(6))
			for i, p := range tt.prices {
				s.Insert("BTCUSDT", sample(time.Duration(i)*time.Second, p))
			}
			got, err := s.Expansion("BTCUSDT")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyExpansion_BandIsStrict(t *testing.T) {
	assert.Equal(t, 0.0, classifyExpansion(0.001, 0.05))
	assert.Equal(t, 0.0, classifyExpansion(-0.001, 0.05))
	assert.Equal(t, 0.0, classifyExpansion(-0.5, 0.05))
	assert.Equal(t, 1.0, classifyExpansion(0.0011, 0.05))
	assert.Equal(t, -1.0, classifyExpansion(0.0011, -0.05))
	assert.Equal(t, -1.0, classifyExpansion(0.0011, 0), "flat trend counts as bearish")
}

func TestExpansion_NeedsTwiceMinPoints(t *testing.T) {
	s := NewStore(WithMinPoints(5))
	for i := 0; i < 9; i++ {
		s.Insert("BTCUSDT", sample(time.Duration(i)*time.Second, float64(100+i)))
	}
	_, err := s.Expansion("BTCUSDT")
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestBook(t *testing.T) {
	s := NewStore()
	_, ok := s.Book("BTCUSDT")
	assert.False(t, ok)

	s.SetBook("BTCUSDT", models.OrderBookSnapshot{Bids: []models.Level{{Price: 1, Quantity: 2}}})
	s.SetBook("BTCUSDT", models.OrderBookSnapshot{Asks: []models.Level{{Price: 2, Quantity: 3}}})
	b, ok := s.Book("BTCUSDT")
	require.True(t, ok)
	assert.Empty(t, b.Bids, "a snapshot replaces prior levels")
	assert.Len(t, b.Asks, 1)
}
