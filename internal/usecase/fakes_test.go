package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
)

type memRiskState struct {
	mu    sync.Mutex
	saved map[string]models.RiskStatus
	saves int
}

func newMemRiskState() *memRiskState {
	return &memRiskState{saved: make(map[string]models.RiskStatus)}
}

func (m *memRiskState) SaveRiskState(_ context.Context, portfolio string, st models.RiskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[portfolio] = st
	m.saves++
	return nil
}

func (m *memRiskState) LoadRiskState(_ context.Context, portfolio string) (*models.RiskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.saved[portfolio]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

type recordingPublisher struct {
	mu         sync.Mutex
	composites []*models.Composite
	orders     []models.OrderEvent
	fail       bool
}

func (p *recordingPublisher) PublishComposite(_ context.Context, c *models.Composite) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.composites = append(p.composites, c)
	return nil
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e *models.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.orders = append(p.orders, *e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) orderEvents() []models.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.OrderEvent(nil), p.orders...)
}

type memSignalCache struct {
	mu sync.Mutex
	m  map[string]*models.Composite
}

func (c *memSignalCache) PutComposite(_ context.Context, comp *models.Composite, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]*models.Composite)
	}
	c.m[comp.Symbol] = comp
	return nil
}

func (c *memSignalCache) GetComposite(_ context.Context, symbol string) (*models.Composite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	comp, ok := c.m[symbol]
	if !ok {
		return nil, errors.New("miss")
	}
	return comp, nil
}

type memCompositeStore struct {
	mu    sync.Mutex
	saved []*models.Composite
}

func (s *memCompositeStore) SaveComposite(_ context.Context, c *models.Composite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, c)
	return nil
}

func f64(v float64) *float64 { return &v }
