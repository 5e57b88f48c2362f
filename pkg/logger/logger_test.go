package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := (&Logger{zl: zerolog.New(&buf)}).With(String("feed", "binance-ticker"))

	l.Warn("reconnecting",
		Int("attempt", 3),
		Float64("price", 50000.5),
		Duration("latency_ms", 150*time.Millisecond),
		Bool("dormant", false),
		Strings("symbols", []string{"BTCUSDT", "ETHUSDT"}),
		Error(errors.New("eof")))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "warn", got["level"])
	assert.Equal(t, "reconnecting", got["message"])
	assert.Equal(t, "binance-ticker", got["feed"])
	assert.Equal(t, 3.0, got["attempt"])
	assert.Equal(t, 50000.5, got["price"])
	assert.Equal(t, 150.0, got["latency_ms"])
	assert.Equal(t, false, got["dormant"])
	assert.Equal(t, "BTCUSDT, ETHUSDT", got["symbols"])
	assert.Equal(t, "eof", got["error"])
}

func TestNew(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)

	l, err := New(&Config{Level: "info", Format: "json", Output: filepath.Join(t.TempDir(), "app.log")})
	require.NoError(t, err)
	l.Info("started")

	Nop().Error("discarded")
}
