package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/pkg/logger"
)

// SourceFunc produces one raw reading for a symbol.
type SourceFunc func(ctx context.Context, symbol string) (float64, error)

// SignalSource is a named, weighted input to fusion.
type SignalSource struct {
	Name   string
	Weight float64
	Range  models.RangeKind
	Fetch  SourceFunc
}

type FusionOption func(*Fusion)

func WithSourceTimeout(d time.Duration) FusionOption {
	return func(f *Fusion) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithThresholds sets the composite levels above/below which the action is directional.
func WithThresholds(long, short float64) FusionOption {
	return func(f *Fusion) {
		f.long, f.short = long, short
	}
}

// Fusion combines registered sources into a weighted composite. Weights are
// used as given, without renormalization.
type Fusion struct {
	mu      sync.RWMutex
	sources []SignalSource
	timeout time.Duration
	long    float64
	short   float64
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewFusion(metrics domrepo.Metrics, log *logger.Logger, opts ...FusionOption) *Fusion {
	f := &Fusion{
		timeout: 5 * time.Second,
		long:    0.2,
		short:   -0.2,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fusion) Register(src SignalSource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
}

func (f *Fusion) Sources() []SignalSource {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]SignalSource(nil), f.sources...)
}

type sourceResult struct {
	src   SignalSource
	value float64
	err   error
}

// Composite queries every source concurrently and joins all of them before
// fusing. A failed source contributes its neutral value and is listed in Failures.
func (f *Fusion) Composite(ctx context.Context, symbol string) *models.Composite {
	sources := f.Sources()
	start := f.now()

	out := make(chan sourceResult, len(sources))
	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src SignalSource) {
			defer wg.Done()
			v, err := f.fetch(ctx, src, symbol)
			out <- sourceResult{src: src, value: v, err: err}
		}(src)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	c := &models.Composite{
		Symbol:      symbol,
		Components:  make(map[string]models.Signal, len(sources)),
		Weights:     make(map[string]float64, len(sources)),
		ModuleCount: len(sources),
	}
	for r := range out {
		raw := r.value
		if r.err != nil {
			if c.Failures == nil {
				c.Failures = make(map[string]string)
			}
			c.Failures[r.src.Name] = r.err.Error()
			raw = r.src.Range.Neutral()
			f.metrics.RecordSourceFailure(r.src.Name)
			f.log.Debug("signal source failed",
				logger.String("source", r.src.Name),
				logger.String("symbol", symbol),
				logger.Error(r.err))
		}
		norm := r.src.Range.Normalize(raw)
		c.Components[r.src.Name] = models.Signal{
			Source:     r.src.Name,
			Value:      raw,
			Normalized: norm,
			Range:      r.src.Range.String(),
			Timestamp:  f.now(),
		}
		c.Weights[r.src.Name] = r.src.Weight
		c.Value += r.src.Weight * norm
		f.metrics.RecordSignal(r.src.Name, symbol, norm)
	}

	c.Action = f.classify(c.Value)
	c.Confidence = math.Abs(c.Value)
	c.Timestamp = f.now()
	f.metrics.RecordComposite(symbol, c.Value, c.Action)
	f.metrics.RecordLatency("fusion_composite", f.now().Sub(start).Seconds())
	return c
}

// fetch bounds one source call by the source timeout. A source that ignores
// ctx is abandoned, not waited for.
func (f *Fusion) fetch(ctx context.Context, src SignalSource, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	type res struct {
		v   float64
		err error
	}
	done := make(chan res, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- res{err: fmt.Errorf("source panic: %v", r)}
			}
		}()
		v, err := src.Fetch(ctx, symbol)
		done <- res{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("source timed out: %w", ctx.Err())
	case r := <-done:
		if r.err == nil && (math.IsNaN(r.v) || math.IsInf(r.v, 0)) {
			return 0, fmt.Errorf("source returned %v", r.v)
		}
		return r.v, r.err
	}
}

func (f *Fusion) classify(v float64) models.Action {
	switch {
	case v > f.long:
		return models.ActionLong
	case v < f.short:
		return models.ActionShort
	}
	return models.ActionNeutral
}
