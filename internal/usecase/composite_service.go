package usecase

import (
	"context"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/pkg/logger"
)

// CompositeListener is notified after each refreshed composite.
type CompositeListener func(ctx context.Context, c *models.Composite)

// CompositeService computes composites and fans them out to the bus, the
// cache and the history store. Sink failures are logged, never returned.
type CompositeService struct {
	fusion    *Fusion
	publisher domrepo.EventPublisher
	cache     domrepo.SignalCache
	store     domrepo.CompositeStore
	ttl       time.Duration
	metrics   domrepo.Metrics
	log       *logger.Logger
	listeners []CompositeListener
}

func NewCompositeService(
	fusion *Fusion,
	publisher domrepo.EventPublisher,
	cache domrepo.SignalCache,
	store domrepo.CompositeStore,
	ttl time.Duration,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *CompositeService {
	return &CompositeService{
		fusion:    fusion,
		publisher: publisher,
		cache:     cache,
		store:     store,
		ttl:       ttl,
		metrics:   metrics,
		log:       log,
	}
}

// OnComposite registers a listener. Not safe to call concurrently with Refresh.
func (s *CompositeService) OnComposite(l CompositeListener) {
	s.listeners = append(s.listeners, l)
}

func (s *CompositeService) Refresh(ctx context.Context, symbol string) *models.Composite {
	c := s.fusion.Composite(ctx, symbol)

	if err := s.publisher.PublishComposite(ctx, c); err != nil {
		s.metrics.RecordError("composite_publish")
		s.log.Warn("publish composite failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if err := s.cache.PutComposite(ctx, c, s.ttl); err != nil {
		s.metrics.RecordError("composite_cache")
		s.log.Warn("cache composite failed", logger.String("symbol", symbol), logger.Error(err))
	}
	if err := s.store.SaveComposite(ctx, c); err != nil {
		s.metrics.RecordError("composite_store")
		s.log.Warn("store composite failed", logger.String("symbol", symbol), logger.Error(err))
	}

	s.log.Info("composite signal",
		logger.String("symbol", symbol),
		logger.Float64("composite", c.Value),
		logger.String("action", string(c.Action)),
		logger.Int("failures", len(c.Failures)))

	for _, l := range s.listeners {
		l(ctx, c)
	}
	return c
}
