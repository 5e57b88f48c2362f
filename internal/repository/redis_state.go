package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/pkg/cache"
)

var (
	_ domrepo.RiskStateStore = (*CacheState)(nil)
	_ domrepo.SignalCache    = (*CacheState)(nil)
)

// riskStateTTL keeps a paused gate paused across a long outage.
const riskStateTTL = 7 * 24 * time.Hour

// CacheState keeps risk snapshots and the latest composites in a cache.Service
// (Redis in production, memory otherwise).
type CacheState struct {
	c cache.Service
}

func NewCacheState(c cache.Service) *CacheState {
	return &CacheState{c: c}
}

func (s *CacheState) SaveRiskState(ctx context.Context, portfolio string, st models.RiskStatus) error {
	if err := s.c.Set(ctx, cache.Key("risk", portfolio), st, riskStateTTL); err != nil {
		return fmt.Errorf("save risk state: %w", err)
	}
	return nil
}

// LoadRiskState returns nil without error when nothing was saved.
func (s *CacheState) LoadRiskState(ctx context.Context, portfolio string) (*models.RiskStatus, error) {
	var st models.RiskStatus
	err := s.c.Get(ctx, cache.Key("risk", portfolio), &st)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	return &st, nil
}

func (s *CacheState) PutComposite(ctx context.Context, c *models.Composite, ttl time.Duration) error {
	return s.c.Set(ctx, cache.Key("composite", c.Symbol), c, ttl)
}
