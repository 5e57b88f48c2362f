package di

import (
	"context"
	"fmt"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/domain/repository"
	domsvc "CryptoPulse/internal/domain/service"
	"CryptoPulse/internal/handler/api"
	mid "CryptoPulse/internal/middleware"
	internalrepo "CryptoPulse/internal/repository"
	"CryptoPulse/internal/service/execution"
	"CryptoPulse/internal/service/feed"
	"CryptoPulse/internal/service/ratelimit"
	"CryptoPulse/internal/service/window"
	"CryptoPulse/internal/services/orderbook"
	"CryptoPulse/internal/services/providers"
	"CryptoPulse/internal/services/volatility"
	"CryptoPulse/internal/usecase"
	"CryptoPulse/pkg/cache"
	pkgch "CryptoPulse/pkg/clickhouse"
	"CryptoPulse/pkg/config"
	xhttp "CryptoPulse/pkg/http"
	pkgkafka "CryptoPulse/pkg/kafka"
	"CryptoPulse/pkg/logger"
	"CryptoPulse/pkg/metrics"
	"CryptoPulse/pkg/server"
)

// SignalProviders groups the external readings. Providers without a URL
// answer providers.ErrNotConfigured.
type SignalProviders struct {
	Sentiment   domsvc.SignalProvider
	Trends      domsvc.SignalProvider
	OIChange    domsvc.SignalProvider
	OptionsFlow domsvc.SignalProvider
}

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&cfg.Log)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCache returns Redis when enabled and an in-process cache otherwise.
func ProvideCache(cfg *config.Config, log *logger.Logger) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mc := cache.NewMemoryCache()
		return mc, func() { _ = mc.Close() }, nil
	}
	rc, err := cache.NewRedisCache(context.Background(),
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	log.Info("redis connected", logger.String("host", cfg.Redis.Host))
	cleanup := func() {
		if err := rc.Close(); err != nil {
			log.Warn("redis close", logger.Error(err))
		}
	}
	return rc, cleanup, nil
}

func ProvideCacheState(c cache.Service) *internalrepo.CacheState {
	return internalrepo.NewCacheState(c)
}

// ProvideArchive connects ClickHouse and applies the schema when enabled.
func ProvideArchive(cfg *config.Config, log *logger.Logger) (internalrepo.Archive, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return internalrepo.NoopStore{}, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	store := internalrepo.NewCHStore(client, log)
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	log.Info("clickhouse connected and schema ready", logger.String("database", cfg.ClickHouse.Database))
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("clickhouse close", logger.Error(err))
		}
	}
	return store, cleanup, nil
}

func ProvideOrderHistoryStore(a internalrepo.Archive) repository.OrderHistoryStore { return a }
func ProvideCompositeStore(a internalrepo.Archive) repository.CompositeStore       { return a }

// ProvideEventPublisher returns a Kafka publisher when enabled and otherwise
// writes order events directly to the archive.
func ProvideEventPublisher(cfg *config.Config, log *logger.Logger, archive internalrepo.Archive) (repository.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NewArchivePublisher(archive), func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.SignalsTopic, cfg.Kafka.OrdersTopic)
	cleanup := func() {
		if err := pub.Close(); err != nil {
			log.Warn("kafka producer close", logger.Error(err))
		}
	}
	return pub, cleanup, nil
}

// ProvideKafkaConsumer returns nil unless both Kafka and ClickHouse are on,
// since the only consumer sinks order events into the archive.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger, h *usecase.OrderEventsHandler) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(h)
	return consumer, nil
}

func ProvideOrderEventsHandler(cfg *config.Config, store repository.OrderHistoryStore, m repository.Metrics) *usecase.OrderEventsHandler {
	return usecase.NewOrderEventsHandler(cfg.Kafka.OrdersTopic, store, m)
}

func ProvideWindowStore(cfg *config.Config) *window.Store {
	return window.NewStore(
		window.WithSpan(time.Duration(cfg.Window.Seconds)*time.Second),
		window.WithMaxCount(cfg.Window.MaxCount),
		window.WithMinPoints(cfg.Window.MinPoints),
	)
}

func ProvideCVDTrackers(cfg *config.Config) *orderbook.Trackers {
	return orderbook.NewTrackers(cfg.OrderBook.CVDHistory)
}

func ProvideMarketHub(cfg *config.Config, store *window.Store, cvd *orderbook.Trackers, m repository.Metrics, log *logger.Logger) *usecase.MarketHub {
	return usecase.NewMarketHub(store, cvd, m, log, cfg.Ingest.InboxSize)
}

func ProvidePipeline(cfg *config.Config, hub *usecase.MarketHub, m repository.Metrics, log *logger.Logger) *mid.RealtimePipeline {
	return mid.NewRealtimePipeline(hub, m, log,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithBufferSize(cfg.Ingest.BufferSize),
	)
}

func ProvideFeedSupervisor(cfg *config.Config, pipe *mid.RealtimePipeline, log *logger.Logger, m repository.Metrics) (*feed.Supervisor, error) {
	return feed.NewSupervisor(cfg.Feeds, pipe.Submit, log, m)
}

func ProvideSignalProviders(cfg *config.Config, c cache.Service) *SignalProviders {
	p := cfg.Providers
	mk := func(name string, ep config.ProviderEndpoint) domsvc.SignalProvider {
		return providers.NewHTTPProvider(name, ep.URL, p.Timeout,
			providers.WithRateLimit(p.RPS, p.Burst),
			providers.WithCache(c, ep.CacheTTL),
		)
	}
	return &SignalProviders{
		Sentiment:   mk("sentiment", p.Sentiment),
		Trends:      mk("trends", p.Trends),
		OIChange:    mk("open_interest", p.OpenInt),
		OptionsFlow: mk("options_flow", p.OptionsFlow),
	}
}

func ProvideVolatilityPredictor(cfg *config.Config, log *logger.Logger) domsvc.VolatilityPredictor {
	return volatility.NewPredictor(cfg.Volatility.ModelPath, log)
}

// ProvideFusion registers the five signal sources with their configured weights.
func ProvideFusion(
	cfg *config.Config,
	store *window.Store,
	cvd *orderbook.Trackers,
	sp *SignalProviders,
	predictor domsvc.VolatilityPredictor,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.Fusion {
	f := usecase.NewFusion(m, log,
		usecase.WithSourceTimeout(cfg.Fusion.SourceTimeout),
		usecase.WithThresholds(cfg.Fusion.LongThreshold, cfg.Fusion.ShortThreshold),
	)
	w := cfg.Fusion.Weights
	f.Register(usecase.SignalSource{Name: "speed", Weight: w["speed"], Range: models.RangeSymmetric,
		Fetch: usecase.SpeedSource(store, cfg.Fusion.FallbackVolGate)})
	f.Register(usecase.SignalSource{Name: "alt_data", Weight: w["alt_data"], Range: models.RangeHalf,
		Fetch: usecase.ProviderSource(providers.NewAltData(sp.Trends, sp.Sentiment))})
	f.Register(usecase.SignalSource{Name: "microstructure", Weight: w["microstructure"], Range: models.RangeSymmetric,
		Fetch: usecase.MicrostructureSource(store, cvd, cfg.OrderBook.WallThreshold)})
	f.Register(usecase.SignalSource{Name: "options_flow", Weight: w["options_flow"], Range: models.RangeSymmetric,
		Fetch: usecase.ProviderSource(sp.OptionsFlow)})
	f.Register(usecase.SignalSource{Name: "volatility", Weight: w["volatility"], Range: models.RangeProbability,
		Fetch: usecase.VolatilitySource(usecase.VolatilityInputs{
			Store:     store,
			CVD:       cvd,
			Sentiment: sp.Sentiment,
			Trends:    sp.Trends,
			OIChange:  sp.OIChange,
		}, predictor)})
	return f
}

func ProvideCompositeService(
	cfg *config.Config,
	fusion *usecase.Fusion,
	pub repository.EventPublisher,
	sc repository.SignalCache,
	cs repository.CompositeStore,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.CompositeService {
	return usecase.NewCompositeService(fusion, pub, sc, cs, cfg.Fusion.CacheTTL, m, log)
}

// ProvideRiskGate restores the last snapshot. A failed restore starts clean.
func ProvideRiskGate(cfg *config.Config, state repository.RiskStateStore, m repository.Metrics, log *logger.Logger) *usecase.RiskGate {
	r := cfg.Risk
	gate := usecase.NewRiskGate(cfg.Trading.PortfolioID, models.RiskLimits{
		MaxDailyTrades:       r.MaxDailyTrades,
		MaxDailyLossFraction: r.MaxDailyLossFraction,
		MaxPositionFraction:  r.MaxPositionFraction,
		VolatilityThreshold:  r.VolatilityThreshold,
		StopTradingOnLoss:    r.StopTradingOnLoss,
	}, state, m, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := gate.Restore(ctx); err != nil {
		log.Warn("risk state restore failed", logger.Error(err))
	}
	return gate
}

func ProvideExecutionBackend(cfg *config.Config) domsvc.ExecutionBackend {
	if cfg.Execution.Mode == "live" {
		return execution.NewLiveBackend(cfg.Execution.LiveURL, cfg.Execution.APIKey, cfg.Execution.Timeout)
	}
	return execution.NewPaperBackend()
}

func ProvideOrderManager(
	cfg *config.Config,
	gate *usecase.RiskGate,
	backend domsvc.ExecutionBackend,
	pub repository.EventPublisher,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.OrderManager {
	return usecase.NewOrderManager(cfg.Trading.PortfolioID, cfg.Trading.InitialBalance, gate, backend, pub, m, log,
		usecase.WithExecutionTimeout(cfg.Execution.Timeout),
		usecase.WithLatencyWarning(cfg.Execution.LatencyWarn),
	)
}

func ProvideMarketContextBuilder(cfg *config.Config, store *window.Store, sp *SignalProviders, log *logger.Logger) *usecase.MarketContextBuilder {
	return usecase.NewMarketContextBuilder(store, sp.Sentiment, sp.OIChange, cfg.Providers.Timeout, log)
}

// ProvideAutoTrader subscribes to composites only when auto execution is on.
func ProvideAutoTrader(
	cfg *config.Config,
	composites *usecase.CompositeService,
	orders *usecase.OrderManager,
	markets *usecase.MarketContextBuilder,
	log *logger.Logger,
) *usecase.AutoTrader {
	t := cfg.Trading
	at := usecase.NewAutoTrader(orders, markets, usecase.AutoTradeConfig{
		Amount:        t.TradeAmount,
		StopLossPct:   t.StopLossPct,
		TakeProfitPct: t.TakeProfitPct,
		Strategy:      t.Strategy,
	}, log)
	if t.AutoExecute {
		composites.OnComposite(at.OnComposite)
		log.Info("auto execution enabled", logger.Float64("trade_amount", t.TradeAmount))
	}
	return at
}

func ProvideScheduler(
	cfg *config.Config,
	orders *usecase.OrderManager,
	composites *usecase.CompositeService,
	markets *usecase.MarketContextBuilder,
	gate *usecase.RiskGate,
	log *logger.Logger,
) (*usecase.Scheduler, error) {
	symbols := configuredSymbols(cfg.Feeds)
	s := usecase.NewScheduler(usecase.ScheduleConfig{
		ProtectiveScan:   cfg.Scheduler.ProtectiveScan,
		CompositeRefresh: cfg.Scheduler.CompositeRefresh,
		RiskSnapshot:     cfg.Scheduler.RiskSnapshot,
	}, orders, composites, markets, gate, func() []string { return symbols }, log)
	if err := s.Register(); err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

func ProvideAPILimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Server.TradeRPS, cfg.Server.TradeBurst)
}

func ProvideTradingHandler(
	cfg *config.Config,
	log *logger.Logger,
	gate *usecase.RiskGate,
	orders *usecase.OrderManager,
	markets *usecase.MarketContextBuilder,
	archive repository.OrderHistoryStore,
	feeds *feed.Supervisor,
	rl *ratelimit.Limiter,
) *api.TradingEchoHandler {
	return api.NewTradingEchoHandler(log, cfg.Trading.PortfolioID, gate, orders, markets, archive, feeds, rl)
}

func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, h *api.TradingEchoHandler) *xhttp.Server {
	return xhttp.NewServer(log, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	feeds *feed.Supervisor,
	pipe *mid.RealtimePipeline,
	hub *usecase.MarketHub,
	sched *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	httpServer *xhttp.Server,
	_ *usecase.AutoTrader,
) *server.App {
	return server.New(cfg, log, server.Components{
		Feeds:     feeds,
		Pipeline:  pipe,
		Hub:       hub,
		Scheduler: sched,
		Consumer:  consumer,
		HTTP:      httpServer,
	})
}

// configuredSymbols lists each configured symbol once, normalized.
func configuredSymbols(feeds []config.FeedConfig) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range feeds {
		for _, s := range f.Symbols {
			s = models.NormalizeSymbol(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
