package usecase

import (
	"context"
	"fmt"

	"CryptoPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

type ScheduleConfig struct {
	ProtectiveScan   string
	CompositeRefresh string
	RiskSnapshot     string
}

// Scheduler runs the periodic jobs: SL/TP scans, composite refreshes and
// risk snapshots. Each job run gets its own context derived from the one
// given to Start.
type Scheduler struct {
	cron       *cron.Cron
	cfg        ScheduleConfig
	orders     *OrderManager
	composites *CompositeService
	markets    *MarketContextBuilder
	gate       *RiskGate
	symbols    func() []string
	log        *logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

func NewScheduler(
	cfg ScheduleConfig,
	orders *OrderManager,
	composites *CompositeService,
	markets *MarketContextBuilder,
	gate *RiskGate,
	symbols func() []string,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		cfg:        cfg,
		orders:     orders,
		composites: composites,
		markets:    markets,
		gate:       gate,
		symbols:    symbols,
		log:        log,
	}
}

// Register adds every configured job. Empty specs disable the job.
func (s *Scheduler) Register() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"protective_scan", s.cfg.ProtectiveScan, s.protectiveScan},
		{"composite_refresh", s.cfg.CompositeRefresh, s.refreshComposites},
		{"risk_snapshot", s.cfg.RiskSnapshot, s.riskSnapshot},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, s.guard(j.name, j.fn)); err != nil {
			return fmt.Errorf("register %s job: %w", j.name, err)
		}
	}
	return nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.log.Info("scheduler started", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) guard(name string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("scheduled job panic", logger.String("job", name), logger.Any("panic", r))
			}
		}()
		if s.ctx == nil || s.ctx.Err() != nil {
			return
		}
		fn()
	}
}

func (s *Scheduler) protectiveScan() {
	for _, sym := range s.symbols() {
		market := s.markets.Build(s.ctx, sym)
		if market.Price <= 0 {
			continue
		}
		for _, res := range s.orders.ProtectiveScan(s.ctx, market) {
			if !res.Success {
				s.log.Warn("protective close failed", logger.String("symbol", sym), logger.String("message", res.Message))
			}
		}
	}
}

func (s *Scheduler) refreshComposites() {
	for _, sym := range s.symbols() {
		if s.ctx.Err() != nil {
			return
		}
		s.composites.Refresh(s.ctx, sym)
	}
}

func (s *Scheduler) riskSnapshot() {
	if err := s.gate.Snapshot(s.ctx); err != nil {
		s.log.Warn("risk snapshot failed", logger.Error(err))
	}
}
