package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/internal/service/ratelimit"
	"CryptoPulse/pkg/logger"
)

// Dispatcher is the downstream the pipeline feeds, normally the market hub.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.MarketEvent) error
}

// RealtimePipeline sits between the feed connections and the symbol actors.
// It validates and throttles events, and buffers them when downstream refuses.
type RealtimePipeline struct {
	next    Dispatcher
	metrics domrepo.Metrics
	log     *logger.Logger
	limiter *ratelimit.Limiter
	maxRPS  int
	bufSize int
	bufCh   chan models.MarketEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	wg      sync.WaitGroup
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRPS sets the max events per second per symbol and kind.
func WithMaxRPS(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewRealtimePipeline(next Dispatcher, metrics domrepo.Metrics, log *logger.Logger, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		next:    next,
		metrics: metrics,
		log:     log,
		maxRPS:  50,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.MarketEvent, p.bufSize)
	p.limiter = ratelimit.New(float64(p.maxRPS), p.maxRPS)
	return p
}

// Start launches background redelivery of buffered events.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		backoff := 10 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case ev := <-p.bufCh:
				if err := p.next.Dispatch(ctx, ev); err != nil {
					if backoff < time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 10 * time.Millisecond
				}
			}
		}
	}()
}

// Stop ends background redelivery.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	p.wg.Wait()
}

// Submit has the feed EventSink signature.
func (p *RealtimePipeline) Submit(ctx context.Context, feed string, events []models.MarketEvent) {
	for _, ev := range events {
		if err := p.Process(ctx, ev); err != nil {
			p.log.Debug("event not delivered", logger.String("feed", feed), logger.Error(err))
		}
	}
}

// Process validates, throttles, and forwards ev, buffering on downstream errors.
func (p *RealtimePipeline) Process(ctx context.Context, ev models.MarketEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.limiter.Allow(throttleKey(ev)) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.next.Dispatch(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_dispatch")
		select {
		case p.bufCh <- ev:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Buffered is the number of events awaiting redelivery.
func (p *RealtimePipeline) Buffered() int { return len(p.bufCh) }

func throttleKey(ev models.MarketEvent) string {
	if ev.Book != nil {
		return ev.Book.Symbol + ":book"
	}
	return ev.Sample.Symbol + ":sample"
}

func validateEvent(ev models.MarketEvent) error {
	switch {
	case ev.Sample != nil && ev.Book != nil:
		return fmt.Errorf("event carries both sample and book")
	case ev.Sample != nil:
		s := ev.Sample
		if s.Symbol == "" {
			return fmt.Errorf("symbol empty")
		}
		if s.Timestamp.IsZero() {
			return fmt.Errorf("timestamp invalid")
		}
		if s.Price <= 0 || s.Volume < 0 || s.TradeSize < 0 {
			return fmt.Errorf("non-positive price or negative volume")
		}
	case ev.Book != nil:
		if ev.Book.Symbol == "" {
			return fmt.Errorf("symbol empty")
		}
	default:
		return fmt.Errorf("empty event")
	}
	return nil
}
