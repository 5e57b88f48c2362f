//go:build wireinject
// +build wireinject

package di

import (
	"CryptoPulse/internal/domain/repository"
	internalrepo "CryptoPulse/internal/repository"
	"CryptoPulse/pkg/config"
	"CryptoPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideCache,
		ProvideCacheState,
		wire.Bind(new(repository.RiskStateStore), new(*internalrepo.CacheState)),
		wire.Bind(new(repository.SignalCache), new(*internalrepo.CacheState)),
		ProvideArchive,
		ProvideOrderHistoryStore,
		ProvideCompositeStore,
		ProvideEventPublisher,
		ProvideOrderEventsHandler,
		ProvideKafkaConsumer,

		// Market data
		ProvideWindowStore,
		ProvideCVDTrackers,
		ProvideMarketHub,
		ProvidePipeline,
		ProvideFeedSupervisor,

		// Signals
		ProvideSignalProviders,
		ProvideVolatilityPredictor,
		ProvideFusion,
		ProvideCompositeService,

		// Trading
		ProvideRiskGate,
		ProvideExecutionBackend,
		ProvideOrderManager,
		ProvideMarketContextBuilder,
		ProvideAutoTrader,
		ProvideScheduler,

		// HTTP
		ProvideAPILimiter,
		ProvideTradingHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
