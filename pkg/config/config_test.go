package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
feeds:
  - exchange: binance
    symbols: [BTCUSDT]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, minimal))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	require.Len(t, c.Feeds, 1)
	f := c.Feeds[0]
	assert.Equal(t, "ticker", f.Channel)
	assert.Equal(t, 30*time.Second, f.ListenTimeout)
	assert.Equal(t, 5*time.Second, f.ReconnectDelay)
	assert.Equal(t, 10, f.MaxReconnectAttempts)

	assert.Equal(t, DefaultWeights, c.Fusion.Weights)
	assert.Equal(t, 0.2, c.Fusion.LongThreshold)
	assert.Equal(t, 5*time.Minute, c.Providers.Sentiment.CacheTTL)
	assert.Equal(t, 50, c.Risk.MaxDailyTrades)
	assert.True(t, c.Risk.StopTradingOnLoss)
	assert.Equal(t, "paper", c.Execution.Mode)
	assert.Equal(t, 100*time.Millisecond, c.Execution.LatencyWarn)
	assert.Equal(t, "@every 5s", c.Scheduler.ProtectiveScan)
}

func TestLoad_ExplicitValuesWin(t *testing.T) {
	c, err := Load(writeConfig(t, minimal+`
fusion:
  weights:
    speed: 1
risk:
  stop_trading_on_loss: false
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"speed": 1}, c.Fusion.Weights)
	assert.False(t, c.Risk.StopTradingOnLoss)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no feeds", "environment: test\n", "feeds cannot be empty"},
		{"unknown exchange", "feeds:\n  - exchange: ftx\n    symbols: [BTCUSD]\n", "not supported"},
		{"unsupported channel", "feeds:\n  - exchange: coinbase\n    channel: book\n    symbols: [BTC-USD]\n", "channel 'book'"},
		{"no symbols", "feeds:\n  - exchange: kraken\n", "symbols cannot be empty"},
		{"live without url", minimal + "execution:\n  mode: live\n", "live_url"},
		{"bad position fraction", minimal + "risk:\n  max_position_fraction: 1.5\n", "max_position_fraction"},
		{"inverted thresholds", minimal + "fusion:\n  long_threshold: -0.5\n", "long_threshold"},
		{"kafka without brokers", minimal + "kafka:\n  enabled: true\n", "kafka.brokers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWithEnv_Overrides(t *testing.T) {
	t.Setenv("CRYPTOPULSE_SYMBOLS", "ETHUSDT,SOLUSDT")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("LOG_LEVEL", "debug")

	c, err := LoadWithEnv(writeConfig(t, minimal))
	require.NoError(t, err)
	assert.Equal(t, []string{"ETHUSDT", "SOLUSDT"}, c.Feeds[0].Symbols)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "redis.internal", c.Redis.Host)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config")
}
