package orderbook

import (
	"sync"

	"CryptoPulse/internal/services/features"
)

const (
	DefaultCVDHistory = 100
	divergenceSpan    = 10
)

// CVDTracker keeps a cumulative volume delta series and a parallel price
// series for one symbol.
type CVDTracker struct {
	mu      sync.RWMutex
	keep    int
	cvd     []float64
	prices  []float64
	current float64
}

func NewCVDTracker(keep int) *CVDTracker {
	if keep < 2*divergenceSpan {
		keep = DefaultCVDHistory
	}
	return &CVDTracker{keep: keep}
}

// Update adds buyVol-sellVol to the running delta and records price.
func (t *CVDTracker) Update(buyVol, sellVol, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current += buyVol - sellVol
	t.cvd = appendBounded(t.cvd, t.current, t.keep)
	t.prices = appendBounded(t.prices, price, t.keep)
}

func appendBounded(xs []float64, v float64, keep int) []float64 {
	xs = append(xs, v)
	if over := len(xs) - keep; over > 0 {
		n := copy(xs, xs[over:])
		xs = xs[:n]
	}
	return xs
}

func (t *CVDTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.cvd)
}

// Value is the current cumulative delta.
func (t *CVDTracker) Value() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Divergence compares the mean of the last 10 points with the 10 before them
// for both series. CVD rising while price falls is +1, the reverse is -1.
// ok is false with fewer than 20 points.
func (t *CVDTracker) Divergence() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.cvd) < 2*divergenceSpan || len(t.prices) < 2*divergenceSpan {
		return 0, false
	}
	cvdTrend := recentTrend(t.cvd)
	priceTrend := recentTrend(t.prices)
	switch {
	case cvdTrend > 0 && priceTrend < 0:
		return 1, true
	case cvdTrend < 0 && priceTrend > 0:
		return -1, true
	}
	return 0, true
}

func recentTrend(xs []float64) float64 {
	n := len(xs)
	return features.Mean(xs[n-divergenceSpan:]) - features.Mean(xs[n-2*divergenceSpan:n-divergenceSpan])
}

// Trackers lazily creates one CVDTracker per symbol.
type Trackers struct {
	mu   sync.Mutex
	keep int
	m    map[string]*CVDTracker
}

func NewTrackers(keep int) *Trackers {
	return &Trackers{keep: keep, m: make(map[string]*CVDTracker)}
}

func (ts *Trackers) For(symbol string) *CVDTracker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.m[symbol]
	if !ok {
		t = NewCVDTracker(ts.keep)
		ts.m[symbol] = t
	}
	return t
}

// Lookup returns the tracker for symbol without creating one.
func (ts *Trackers) Lookup(symbol string) (*CVDTracker, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.m[symbol]
	return t, ok
}
