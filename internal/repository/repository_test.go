package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	topic string
	key   string
	value interface{}
}

type fakeProducer struct {
	sent   []sent
	closed bool
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.sent = append(p.sent, sent{topic: topic, key: string(key), value: value})
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

type memArchive struct {
	NoopStore
	events []models.OrderEvent
}

func (m *memArchive) AppendOrderEvents(_ context.Context, events []models.OrderEvent) error {
	m.events = append(m.events, events...)
	return nil
}

func TestKafkaPublisher_RoutesByKind(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPublisher(fp, "signals", "orders")

	c := &models.Composite{Symbol: "BTCUSDT", Value: 0.3}
	require.NoError(t, pub.PublishComposite(context.Background(), c))
	ev := &models.OrderEvent{Type: models.EventFilled, Order: models.Order{ID: "o1", Portfolio: "default"}}
	require.NoError(t, pub.PublishOrderEvent(context.Background(), ev))
	require.NoError(t, pub.Close())

	require.Len(t, fp.sent, 2)
	assert.Equal(t, sent{topic: "signals", key: "BTCUSDT", value: c}, fp.sent[0])
	assert.Equal(t, sent{topic: "orders", key: "default", value: ev}, fp.sent[1])
	assert.True(t, fp.closed)
}

func TestCacheState_RiskRoundTrip(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	s := NewCacheState(mc)
	ctx := context.Background()

	st, err := s.LoadRiskState(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, st)

	want := models.RiskStatus{
		Paused:      true,
		PauseReason: "manual",
		Daily:       models.DailyRiskStats{TradeCount: 3, CumulativeLoss: 12.5, DayStartBalance: 1000},
	}
	require.NoError(t, s.SaveRiskState(ctx, "default", want))
	got, err := s.LoadRiskState(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, want.PauseReason, got.PauseReason)
	assert.Equal(t, want.Daily.TradeCount, got.Daily.TradeCount)
	assert.True(t, got.Paused)
}

func TestCacheState_Composite(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	s := NewCacheState(mc)
	ctx := context.Background()

	var c models.Composite
	assert.ErrorIs(t, mc.Get(ctx, "composite:BTCUSDT", &c), cache.ErrCacheMiss)

	require.NoError(t, s.PutComposite(ctx, &models.Composite{Symbol: "BTCUSDT", Action: models.ActionLong, Value: 0.4}, time.Minute))
	require.NoError(t, mc.Get(ctx, "composite:BTCUSDT", &c))
	assert.Equal(t, models.ActionLong, c.Action)
	assert.Equal(t, 0.4, c.Value)
}

func TestArchivePublisher_AppendsOrderEvents(t *testing.T) {
	store := &memArchive{}
	p := NewArchivePublisher(store)
	ctx := context.Background()

	require.NoError(t, p.PublishComposite(ctx, &models.Composite{Symbol: "BTCUSDT"}))
	require.NoError(t, p.PublishOrderEvent(ctx, &models.OrderEvent{Type: models.EventFilled, Order: models.Order{ID: "o1"}}))
	require.Len(t, store.events, 1)
	assert.Equal(t, "o1", store.events[0].Order.ID)
}

func TestOrderEventArgs(t *testing.T) {
	sl := 49000.0
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	args := orderEventArgs(models.OrderEvent{
		Type:        models.EventFilled,
		RealizedPnL: -4,
		At:          at,
		Order:       models.Order{ID: "o1", Portfolio: "default", Pair: "BTCUSDT", Side: models.SideSell, StopLoss: &sl},
	})

	require.Len(t, args, 21)
	assert.Equal(t, at.UTC(), args[0])
	assert.Equal(t, "filled", args[3])
	assert.Equal(t, "SELL", args[5])
	assert.Equal(t, sql.NullFloat64{Float64: 49000, Valid: true}, args[11])
	assert.Equal(t, sql.NullFloat64{}, args[12])
	assert.Equal(t, -4.0, args[18])
}

func TestCompositeArgs(t *testing.T) {
	args, err := compositeArgs(&models.Composite{
		Symbol:      "ETHUSDT",
		Action:      models.ActionShort,
		ModuleCount: 5,
		Components:  map[string]models.Signal{"speed": {Source: "speed", Value: -1}},
		Failures:    map[string]string{"alt_data": "timeout"},
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(5), args[5])

	var failures map[string]string
	require.NoError(t, json.Unmarshal([]byte(args[7].(string)), &failures))
	assert.Equal(t, "timeout", failures["alt_data"])

	args, err = compositeArgs(&models.Composite{Symbol: "ETHUSDT"})
	require.NoError(t, err)
	assert.Equal(t, "{}", args[7])
}

func TestSchemaIsIdempotent(t *testing.T) {
	require.Len(t, Schema, 2)
	for _, stmt := range Schema {
		assert.Contains(t, stmt, "IF NOT EXISTS")
	}
}
