package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "CryptoPulse/internal/middleware"
	"CryptoPulse/internal/service/feed"
	"CryptoPulse/internal/usecase"
	"CryptoPulse/pkg/config"
	xhttp "CryptoPulse/pkg/http"
	pkgkafka "CryptoPulse/pkg/kafka"
	applogger "CryptoPulse/pkg/logger"
)

// Components are the long-running parts the App starts and stops. Consumer
// may be nil.
type Components struct {
	Feeds     *feed.Supervisor
	Pipeline  *mid.RealtimePipeline
	Hub       *usecase.MarketHub
	Scheduler *usecase.Scheduler
	Consumer  *pkgkafka.Consumer
	HTTP      *xhttp.Server
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg *config.Config
	log *applogger.Logger
	c   Components
}

func New(cfg *config.Config, log *applogger.Logger, c Components) *App {
	return &App{cfg: cfg, log: log, c: c}
}

// Run starts every component and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// downstream first so the first feed event has somewhere to go
	a.c.Pipeline.Start(runCtx)
	a.c.Feeds.Start(runCtx)
	a.c.Scheduler.Start(runCtx)

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Start(runCtx); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.c.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("cryptopulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("execution", a.cfg.Execution.Mode),
		applogger.Int("feeds", len(a.cfg.Feeds)),
		applogger.Bool("auto_execute", a.cfg.Trading.AutoExecute))

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown stops components in reverse dependency order.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.c.HTTP.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.c.Scheduler.Stop()
	a.c.Feeds.Stop()
	a.c.Pipeline.Stop()
	a.c.Hub.Stop()

	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
