package feed

import (
	"encoding/json"
	"testing"
	"time"

	"CryptoPulse/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParser_RejectsUnknownChannel(t *testing.T) {
	_, err := NewParser(config.FeedConfig{Exchange: "coinbase", Channel: "book", Symbols: []string{"BTC-USD"}})
	assert.Error(t, err)

	_, err = NewParser(config.FeedConfig{Exchange: "ftx", Channel: "ticker", Symbols: []string{"BTC"}})
	assert.Error(t, err)
}

func TestBinance_EndpointIsURLBased(t *testing.T) {
	p := newBinanceParser(config.FeedConfig{Exchange: "binance", Channel: "ticker", Symbols: []string{"BTC/USDT"}})
	assert.Equal(t, "wss://stream.binance.com:9443/ws/btcusdt@ticker", p.Endpoint())
	subs, err := p.SubscribeMessages()
	require.NoError(t, err)
	assert.Nil(t, subs)

	d := newBinanceParser(config.FeedConfig{Exchange: "binance", Channel: "depth", Depth: 20, Symbols: []string{"btcusdt", "ETHUSDT"}})
	assert.Equal(t, "wss://stream.binance.com:9443/stream?streams=btcusdt@depth20@100ms/ethusdt@depth20@100ms", d.Endpoint())
}

func TestBinance_ParseTicker(t *testing.T) {
	p := newBinanceParser(config.FeedConfig{Channel: "ticker", Symbols: []string{"BTCUSDT"}})
	raw := []byte(`{"e":"24hrTicker","E":1728555010000,"s":"BTCUSDT","c":"50000.10","v":"1234.5","Q":"0.02"}`)

	events, err := p.Parse(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)
	s := events[0].Sample
	require.NotNil(t, s)
	assert.Equal(t, "BTCUSDT", s.Symbol)
	assert.Equal(t, 50000.10, s.Price)
	assert.Equal(t, 1234.5, s.Volume)
	assert.Equal(t, 0.02, s.TradeSize)
	assert.Equal(t, time.UnixMilli(1728555010000).UTC(), s.Timestamp)
}

func TestBinance_ParseCombinedDepth(t *testing.T) {
	p := newBinanceParser(config.FeedConfig{Channel: "depth", Depth: 20, Symbols: []string{"btcusdt", "ethusdt"}})
	raw := []byte(`{"stream":"ethusdt@depth20@100ms","data":{"lastUpdateId":1,"bids":[["3000.0","2.0"],["2999.5","0"]],"asks":[["3000.5","1.5"]]}}`)

	events, err := p.Parse(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)
	b := events[0].Book
	require.NotNil(t, b)
	assert.Equal(t, "ETHUSDT", b.Symbol)
	require.Len(t, b.Bids, 1, "zero-quantity levels are dropped")
	assert.Equal(t, 2.0, b.Bids[0].Quantity)
	assert.Equal(t, 3000.5, b.Asks[0].Price)
}

func TestBinance_AckIsIgnoredGarbageIsError(t *testing.T) {
	p := newBinanceParser(config.FeedConfig{Channel: "ticker", Symbols: []string{"BTCUSDT"}})

	events, err := p.Parse([]byte(`{"result":null,"id":1}`))
	assert.NoError(t, err)
	assert.Empty(t, events)

	_, err = p.Parse([]byte(`not json`))
	assert.Error(t, err)

	_, err = p.Parse([]byte(`{"s":"BTCUSDT","c":"-1"}`))
	assert.Error(t, err)
}

func TestKraken_SubscribeMessage(t *testing.T) {
	p := newKrakenParser(config.FeedConfig{Channel: "book", Depth: 10, Symbols: []string{"XBT/USD"}})
	subs, err := p.SubscribeMessages()
	require.NoError(t, err)
	require.Len(t, subs, 1)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(subs[0], &msg))
	assert.Equal(t, "subscribe", msg["event"])
	assert.Equal(t, []interface{}{"XBT/USD"}, msg["pair"])
	assert.Equal(t, map[string]interface{}{"name": "book", "depth": float64(10)}, msg["subscription"])
	assert.Equal(t, []byte(`{"event":"ping"}`), p.KeepaliveMessage())
}

func TestKraken_ParseTickerObject(t *testing.T) {
	p := newKrakenParser(config.FeedConfig{Channel: "ticker", Symbols: []string{"XBT/USD"}})
	raw := []byte(`[340,{"a":["50001.0",1,"1.0"],"b":["50000.0",2,"2.0"],"c":["50000.5","0.1"],"v":["100.0","2500.0"]},"ticker","XBT/USD"]`)

	events, err := p.Parse(raw)
	require.NoError(t, err)
	require.Len(t, events, 1)
	s := events[0].Sample
	assert.Equal(t, "BTCUSD", s.Symbol)
	assert.Equal(t, 50000.5, s.Price)
	assert.Equal(t, 2500.0, s.Volume)
	assert.Equal(t, 0.1, s.TradeSize)
}

func TestKraken_ParseFlatTicker(t *testing.T) {
	p := newKrakenParser(config.FeedConfig{Channel: "ticker", Symbols: []string{"ETH/USD"}})
	events, err := p.Parse([]byte(`[12,["3100.2","7.5"]]`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ETHUSD", events[0].Sample.Symbol)
	assert.Equal(t, 3100.2, events[0].Sample.Price)
	assert.Equal(t, 7.5, events[0].Sample.Volume)
}

func TestKraken_ParseBookSnapshotAndUpdate(t *testing.T) {
	p := newKrakenParser(config.FeedConfig{Channel: "book", Depth: 10, Symbols: []string{"XBT/USD"}})

	snap := []byte(`[0,{"as":[["5541.3","2.5","1534614248.1"]],"bs":[["5541.2","1.5","1534614248.7"],["5539.9","0.3","1534614241.7"]]},"book-10","XBT/USD"]`)
	events, err := p.Parse(snap)
	require.NoError(t, err)
	require.Len(t, events, 1)
	b := events[0].Book
	assert.Equal(t, "BTCUSD", b.Symbol)
	assert.Len(t, b.Bids, 2)
	assert.Len(t, b.Asks, 1)

	update := []byte(`[1234,{"a":[["5541.3","3.0","1534614335.3"]]},{"b":[["5541.2","1.0","1534614335.3"]]},"book-10","XBT/USD"]`)
	events, err = p.Parse(update)
	require.NoError(t, err)
	b = events[0].Book
	require.Len(t, b.Asks, 1)
	require.Len(t, b.Bids, 1)
	assert.Equal(t, 3.0, b.Asks[0].Quantity)
}

func TestKraken_ControlFrames(t *testing.T) {
	p := newKrakenParser(config.FeedConfig{Channel: "ticker", Symbols: []string{"XBT/USD"}})
	for _, raw := range []string{
		`{"event":"heartbeat"}`,
		`{"event":"pong","reqid":1}`,
		`{"event":"systemStatus","status":"online"}`,
		`{"event":"subscriptionStatus","status":"subscribed","pair":"XBT/USD"}`,
	} {
		events, err := p.Parse([]byte(raw))
		assert.NoError(t, err, raw)
		assert.Empty(t, events, raw)
	}

	_, err := p.Parse([]byte(`{"event":"subscriptionStatus","status":"error","errorMessage":"Currency pair not supported"}`))
	assert.Error(t, err)
}

func TestCoinbase_SubscribeAndParse(t *testing.T) {
	p := newCoinbaseParser(config.FeedConfig{Channel: "ticker", Symbols: []string{"BTC-USD"}})
	subs, err := p.SubscribeMessages()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","product_ids":["BTC-USD"],"channels":["ticker"]}`, string(subs[0]))

	events, err := p.Parse([]byte(`{"type":"ticker","product_id":"BTC-USD","price":"43000.12","volume_24h":"9000.5","last_size":"0.003","time":"2024-01-02T03:04:05.000001Z"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	s := events[0].Sample
	assert.Equal(t, "BTCUSD", s.Symbol)
	assert.Equal(t, 43000.12, s.Price)
	assert.Equal(t, 9000.5, s.Volume)
	assert.Equal(t, 2024, s.Timestamp.Year())

	events, err = p.Parse([]byte(`{"type":"subscriptions","channels":[]}`))
	assert.NoError(t, err)
	assert.Empty(t, events)

	_, err = p.Parse([]byte(`{"type":"error","message":"Failed to subscribe"}`))
	assert.Error(t, err)
}
