package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"CryptoPulse/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string        `yaml:"environment" default:"development"`
	Log         logger.Config `yaml:"log"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		TradeRPS        float64       `yaml:"trade_rps" default:"2"`
		TradeBurst      int           `yaml:"trade_burst" default:"5"`
	} `yaml:"server"`
	Feeds  []FeedConfig `yaml:"feeds"`
	Ingest struct {
		MaxRPS     int `yaml:"max_rps" default:"50"`
		InboxSize  int `yaml:"inbox_size" default:"1024"`
		BufferSize int `yaml:"buffer_size" default:"2000"`
	} `yaml:"ingest"`
	Window struct {
		Seconds   int `yaml:"seconds" default:"30"`
		MaxCount  int `yaml:"max_count" default:"1000"`
		MinPoints int `yaml:"min_points" default:"10"`
	} `yaml:"window"`
	OrderBook struct {
		WallThreshold float64 `yaml:"wall_threshold" default:"0.1"`
		CVDHistory    int     `yaml:"cvd_history" default:"100"`
	} `yaml:"orderbook"`
	Fusion struct {
		Weights         map[string]float64 `yaml:"weights"`
		SourceTimeout   time.Duration      `yaml:"source_timeout" default:"5s"`
		LongThreshold   float64            `yaml:"long_threshold" default:"0.2"`
		ShortThreshold  float64            `yaml:"short_threshold" default:"-0.2"`
		CacheTTL        time.Duration      `yaml:"cache_ttl" default:"15s"`
		FallbackVolGate float64            `yaml:"fallback_vol_gate" default:"0.01"`
	} `yaml:"fusion"`
	Providers struct {
		Timeout     time.Duration    `yaml:"timeout" default:"3s"`
		RPS         float64          `yaml:"rps" default:"5"`
		Burst       int              `yaml:"burst" default:"5"`
		Sentiment   ProviderEndpoint `yaml:"sentiment"`
		Trends      ProviderEndpoint `yaml:"trends"`
		OpenInt     ProviderEndpoint `yaml:"open_interest"`
		OptionsFlow ProviderEndpoint `yaml:"options_flow"`
	} `yaml:"providers"`
	Volatility struct {
		ModelPath string `yaml:"model_path" default:"models/volatility.yaml"`
	} `yaml:"volatility"`
	Risk      RiskConfig `yaml:"risk"`
	Execution struct {
		Mode        string        `yaml:"mode" default:"paper"`
		LiveURL     string        `yaml:"live_url"`
		APIKey      string        `yaml:"api_key"`
		Timeout     time.Duration `yaml:"timeout" default:"5s"`
		LatencyWarn time.Duration `yaml:"latency_warn" default:"100ms"`
	} `yaml:"execution"`
	Trading struct {
		PortfolioID    string  `yaml:"portfolio_id" default:"default"`
		InitialBalance float64 `yaml:"initial_balance" default:"1000"`
		AutoExecute    bool    `yaml:"auto_execute"`
		TradeAmount    float64 `yaml:"trade_amount" default:"100"`
		StopLossPct    float64 `yaml:"stop_loss_pct" default:"0.02"`
		TakeProfitPct  float64 `yaml:"take_profit_pct" default:"0.04"`
		Strategy       string  `yaml:"strategy" default:"composite"`
	} `yaml:"trading"`
	Scheduler struct {
		ProtectiveScan   string `yaml:"protective_scan" default:"@every 5s"`
		CompositeRefresh string `yaml:"composite_refresh" default:"@every 10s"`
		RiskSnapshot     string `yaml:"risk_snapshot" default:"@every 1m"`
	} `yaml:"scheduler"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		SignalsTopic string   `yaml:"signals_topic" default:"cryptopulse.signals"`
		OrdersTopic  string   `yaml:"orders_topic" default:"cryptopulse.orders"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"cryptopulse-orders-sink"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"cryptopulse"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		AsyncInsert      bool          `yaml:"async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Host         string `yaml:"host" default:"localhost"`
		Port         int    `yaml:"port" default:"6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size" default:"10"`
		MinIdleConns int    `yaml:"min_idle_conns" default:"2"`
		Prefix       string `yaml:"prefix" default:"cryptopulse"`
	} `yaml:"redis"`
}

// FeedConfig describes one (exchange, channel) connection.
type FeedConfig struct {
	Exchange             string        `yaml:"exchange"`
	Channel              string        `yaml:"channel" default:"ticker"`
	URL                  string        `yaml:"url"`
	Symbols              []string      `yaml:"symbols"`
	Depth                int           `yaml:"depth" default:"20"`
	ListenTimeout        time.Duration `yaml:"listen_timeout" default:"30s"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay" default:"5s"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts" default:"10"`
	RestartDormantAfter  time.Duration `yaml:"restart_dormant_after"`
}

type ProviderEndpoint struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
}

type RiskConfig struct {
	MaxDailyTrades       int     `yaml:"max_daily_trades" default:"50"`
	MaxDailyLossFraction float64 `yaml:"max_daily_loss_fraction" default:"0.25"`
	MaxPositionFraction  float64 `yaml:"max_position_fraction" default:"0.3"`
	VolatilityThreshold  float64 `yaml:"volatility_threshold" default:"0.1"`
	StopTradingOnLoss    bool    `yaml:"stop_trading_on_loss" default:"true"`
}

// DefaultWeights are applied when fusion.weights is left empty.
var DefaultWeights = map[string]float64{
	"speed":          0.25,
	"alt_data":       0.20,
	"microstructure": 0.25,
	"options_flow":   0.15,
	"volatility":     0.15,
}

var knownExchanges = map[string][]string{
	"binance":  {"ticker", "depth"},
	"kraken":   {"ticker", "book"},
	"coinbase": {"ticker"},
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// defaults go in first so explicit zero values in YAML win
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.applyDefaults(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.overrideFromEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDefaults() error {
	for i := range c.Feeds {
		if err := defaults.Set(&c.Feeds[i]); err != nil {
			return fmt.Errorf("feed %d defaults: %w", i, err)
		}
	}
	if len(c.Fusion.Weights) == 0 {
		c.Fusion.Weights = make(map[string]float64, len(DefaultWeights))
		for k, v := range DefaultWeights {
			c.Fusion.Weights[k] = v
		}
	}
	return nil
}

func (c *Config) overrideFromEnv() {
	if v := os.Getenv("CRYPTOPULSE_SYMBOLS"); v != "" {
		syms := strings.Split(v, ",")
		for i := range c.Feeds {
			c.Feeds[i].Symbols = syms
		}
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := os.Getenv("EXECUTION_MODE"); v != "" {
		c.Execution.Mode = v
	}
	if v := os.Getenv("EXECUTION_API_KEY"); v != "" {
		c.Execution.APIKey = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("feeds cannot be empty")
	}
	for i, f := range c.Feeds {
		channels, ok := knownExchanges[f.Exchange]
		if !ok {
			return fmt.Errorf("feeds[%d].exchange '%s' is not supported", i, f.Exchange)
		}
		if !contains(channels, f.Channel) {
			return fmt.Errorf("feeds[%d].channel '%s' is not supported by %s", i, f.Channel, f.Exchange)
		}
		if len(f.Symbols) == 0 {
			return fmt.Errorf("feeds[%d].symbols cannot be empty", i)
		}
		if f.MaxReconnectAttempts <= 0 {
			return fmt.Errorf("feeds[%d].max_reconnect_attempts must be positive", i)
		}
		if f.ListenTimeout <= 0 {
			return fmt.Errorf("feeds[%d].listen_timeout must be positive", i)
		}
	}
	if c.Window.Seconds <= 0 || c.Window.MaxCount <= 0 || c.Window.MinPoints < 2 {
		return fmt.Errorf("window: seconds and max_count must be positive, min_points at least 2")
	}
	if c.Risk.MaxPositionFraction <= 0 || c.Risk.MaxPositionFraction > 1 {
		return fmt.Errorf("risk.max_position_fraction must be in (0,1], got %v", c.Risk.MaxPositionFraction)
	}
	if c.Risk.MaxDailyLossFraction <= 0 || c.Risk.MaxDailyLossFraction > 1 {
		return fmt.Errorf("risk.max_daily_loss_fraction must be in (0,1], got %v", c.Risk.MaxDailyLossFraction)
	}
	switch c.Execution.Mode {
	case "paper":
	case "live":
		if c.Execution.LiveURL == "" {
			return fmt.Errorf("execution.live_url is required in live mode")
		}
	default:
		return fmt.Errorf("execution.mode must be 'paper' or 'live', got '%s'", c.Execution.Mode)
	}
	if c.Fusion.LongThreshold <= c.Fusion.ShortThreshold {
		return fmt.Errorf("fusion.long_threshold must exceed fusion.short_threshold")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
