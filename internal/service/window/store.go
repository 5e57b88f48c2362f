package window

import (
	"errors"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/services/features"
)

// ErrInsufficientData is returned instead of a number when the window is too short.
var ErrInsufficientData = errors.New("window: insufficient data")

// ExpansionBand is the dead zone around a zero stdev delta.
const ExpansionBand = 0.001

type Option func(*Store)

func WithSpan(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.span = d
		}
	}
}

func WithMaxCount(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxCount = n
		}
	}
}

func WithMinPoints(n int) Option {
	return func(s *Store) {
		if n > 1 {
			s.minPoints = n
		}
	}
}

type series struct {
	mu      sync.RWMutex
	samples []models.PriceSample
	newest  time.Time
	book    *models.OrderBookSnapshot
}

// Store keeps a bounded, time-limited window of samples per symbol plus the
// latest order book. Writes for one symbol are expected from a single goroutine.
type Store struct {
	span      time.Duration
	maxCount  int
	minPoints int

	mu     sync.RWMutex
	series map[string]*series
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		span:      30 * time.Second,
		maxCount:  1000,
		minPoints: 10,
		series:    make(map[string]*series),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) MinPoints() int { return s.minPoints }

func (s *Store) get(symbol string) *series {
	s.mu.RLock()
	sr := s.series[symbol]
	s.mu.RUnlock()
	return sr
}

func (s *Store) getOrCreate(symbol string) *series {
	if sr := s.get(symbol); sr != nil {
		return sr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.series[symbol]
	if !ok {
		sr = &series{}
		s.series[symbol] = sr
	}
	return sr
}

// Insert appends a sample, then evicts everything older than span before the
// newest timestamp seen, and finally the oldest entries over the count cap.
// Late samples keep their arrival order.
func (s *Store) Insert(symbol string, sample models.PriceSample) {
	sr := s.getOrCreate(symbol)
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sample.Timestamp.After(sr.newest) {
		sr.newest = sample.Timestamp
	}
	sr.samples = append(sr.samples, sample)

	cutoff := sr.newest.Add(-s.span)
	kept := sr.samples[:0]
	for _, smp := range sr.samples {
		if !smp.Timestamp.Before(cutoff) {
			kept = append(kept, smp)
		}
	}
	if over := len(kept) - s.maxCount; over > 0 {
		n := copy(kept, kept[over:])
		kept = kept[:n]
	}
	sr.samples = kept
}

func (s *Store) Prices(symbol string) []float64 {
	sr := s.get(symbol)
	if sr == nil {
		return nil
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	out := make([]float64, len(sr.samples))
	for i, smp := range sr.samples {
		out[i] = smp.Price
	}
	return out
}

func (s *Store) Samples(symbol string) []models.PriceSample {
	sr := s.get(symbol)
	if sr == nil {
		return nil
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return append([]models.PriceSample(nil), sr.samples...)
}

func (s *Store) Latest(symbol string) (models.PriceSample, bool) {
	sr := s.get(symbol)
	if sr == nil {
		return models.PriceSample{}, false
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	if len(sr.samples) == 0 {
		return models.PriceSample{}, false
	}
	return sr.samples[len(sr.samples)-1], true
}

func (s *Store) Len(symbol string) int {
	sr := s.get(symbol)
	if sr == nil {
		return 0
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.samples)
}

func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	return out
}

// SetBook replaces the latest snapshot for symbol.
func (s *Store) SetBook(symbol string, book models.OrderBookSnapshot) {
	sr := s.getOrCreate(symbol)
	sr.mu.Lock()
	sr.book = &book
	sr.mu.Unlock()
}

func (s *Store) Book(symbol string) (models.OrderBookSnapshot, bool) {
	sr := s.get(symbol)
	if sr == nil {
		return models.OrderBookSnapshot{}, false
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	if sr.book == nil {
		return models.OrderBookSnapshot{}, false
	}
	return *sr.book, true
}

// Volatility is the population stdev of simple returns over the window.
func (s *Store) Volatility(symbol string) (float64, error) {
	prices := s.Prices(symbol)
	if len(prices) < s.minPoints {
		return 0, ErrInsufficientData
	}
	return features.ReturnVolatility(prices), nil
}

// Expansion compares return stdev of the second half of the window with the
// first half. It is +1/-1 following the window trend when volatility expands
// by more than ExpansionBand, else 0.
func (s *Store) Expansion(symbol string) (float64, error) {
	prices := s.Prices(symbol)
	if len(prices) < 2*s.minPoints {
		return 0, ErrInsufficientData
	}
	return expansion(prices), nil
}

func expansion(prices []float64) float64 {
	mid := len(prices) / 2
	d := features.ReturnVolatility(prices[mid:]) - features.ReturnVolatility(prices[:mid])
	return classifyExpansion(d, features.Trend(prices))
}

func classifyExpansion(delta, trend float64) float64 {
	if delta > ExpansionBand {
		return features.Sign(trend)
	}
	return 0
}
