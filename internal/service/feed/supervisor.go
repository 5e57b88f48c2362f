package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/domain/repository"
	"CryptoPulse/pkg/config"
	"CryptoPulse/pkg/logger"
)

type supervised struct {
	conn         *Connection
	restartAfter time.Duration
}

// Supervisor runs every configured feed in its own goroutine and revives
// dormant ones after their restart delay, when one is configured.
type Supervisor struct {
	feeds  []supervised
	log    *logger.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSupervisor(cfgs []config.FeedConfig, sink EventSink, log *logger.Logger, metrics repository.Metrics) (*Supervisor, error) {
	s := &Supervisor{log: log}
	for _, fc := range cfgs {
		parser, err := NewParser(fc)
		if err != nil {
			return nil, err
		}
		conn := NewConnection(parser, Options{
			ListenTimeout:        fc.ListenTimeout,
			ReconnectDelay:       fc.ReconnectDelay,
			MaxReconnectAttempts: fc.MaxReconnectAttempts,
		}, sink, log, metrics).WithDescription(fc.Exchange, fc.Channel, fc.Symbols)
		s.feeds = append(s.feeds, supervised{conn: conn, restartAfter: fc.RestartDormantAfter})
	}
	return s, nil
}

// Start launches all feeds and returns immediately.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, f := range s.feeds {
		s.wg.Add(1)
		go s.supervise(ctx, f)
	}
	s.log.Info("feed supervisor started", logger.Int("feeds", len(s.feeds)))
}

func (s *Supervisor) supervise(ctx context.Context, f supervised) {
	defer s.wg.Done()

	err := f.conn.Run(ctx)
	for errors.Is(err, ErrDormant) {
		s.log.Error("feed is dormant", logger.String("feed", f.conn.Name()))
		if f.restartAfter <= 0 || !sleepCtx(ctx, f.restartAfter) {
			return
		}
		err = f.conn.Restart(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("feed stopped", logger.String("feed", f.conn.Name()), logger.Error(err))
	}
}

// Stop cancels every feed and waits for their goroutines.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	for _, f := range s.feeds {
		f.conn.Close()
	}
	s.wg.Wait()
}

func (s *Supervisor) Statuses() []models.FeedStatus {
	out := make([]models.FeedStatus, 0, len(s.feeds))
	for _, f := range s.feeds {
		out = append(out, f.conn.Status())
	}
	return out
}
