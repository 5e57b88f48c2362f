package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	pkgch "CryptoPulse/pkg/clickhouse"
	applogger "CryptoPulse/pkg/logger"
)

// Archive is the long-term store for order events and composites.
type Archive interface {
	domrepo.OrderHistoryStore
	domrepo.CompositeStore
}

var (
	_ Archive = (*CHStore)(nil)
	_ Archive = NoopStore{}
)

// Schema is applied by Init. Statements are idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS order_events (
		at           DateTime64(3, 'UTC'),
		portfolio    LowCardinality(String),
		order_id     String,
		event_type   LowCardinality(String),
		pair         LowCardinality(String),
		side         LowCardinality(String),
		order_type   LowCardinality(String),
		status       LowCardinality(String),
		amount       Float64,
		price        Float64,
		filled_price Float64,
		stop_loss    Nullable(Float64),
		take_profit  Nullable(Float64),
		strategy     String,
		confidence   Float64,
		reason       String,
		error        String,
		venue_id     String,
		realized_pnl Float64,
		latency_ms   Float64,
		created_at   DateTime64(3, 'UTC')
	) ENGINE = MergeTree
	PARTITION BY toYYYYMM(at)
	ORDER BY (portfolio, at, order_id)`,
	`CREATE TABLE IF NOT EXISTS composites (
		ts           DateTime64(3, 'UTC'),
		symbol       LowCardinality(String),
		composite    Float64,
		action       LowCardinality(String),
		confidence   Float64,
		module_count UInt8,
		components   String,
		failures     String
	) ENGINE = MergeTree
	PARTITION BY toYYYYMMDD(ts)
	ORDER BY (symbol, ts)
	TTL toDateTime(ts) + INTERVAL 30 DAY`,
}

const insertOrderEvent = `INSERT INTO order_events (at, portfolio, order_id, event_type, pair, side, order_type, status,
	amount, price, filled_price, stop_loss, take_profit, strategy, confidence, reason, error, venue_id,
	realized_pnl, latency_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertComposite = `INSERT INTO composites (ts, symbol, composite, action, confidence, module_count, components, failures)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const selectOrderEvents = `SELECT at, portfolio, order_id, event_type, pair, side, order_type, status,
	amount, price, filled_price, stop_loss, take_profit, strategy, confidence, reason, error, venue_id,
	realized_pnl, latency_ms, created_at
	FROM order_events WHERE portfolio = ? ORDER BY at DESC LIMIT ?`

// CHStore archives order events and composites in ClickHouse.
type CHStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

func NewCHStore(ch *pkgch.Client, l *applogger.Logger) *CHStore {
	return &CHStore{ch: ch, db: ch.DB(), l: l}
}

func (s *CHStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, Schema)
}

// AppendOrderEvents writes events in one batch.
func (s *CHStore) AppendOrderEvents(ctx context.Context, events []models.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertOrderEvent)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare order batch: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx, orderEventArgs(ev)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append order event %s: %w", ev.Order.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order batch: %w", err)
	}
	s.l.Debug("clickhouse order events appended",
		applogger.Int("rows", len(events)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// ListOrderEvents returns the newest limit events, oldest first.
func (s *CHStore) ListOrderEvents(ctx context.Context, portfolio string, limit int) ([]models.OrderEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectOrderEvents, portfolio, limit)
	if err != nil {
		s.l.Error("clickhouse list_order_events query error", applogger.String("portfolio", portfolio), applogger.Error(err))
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()

	out := make([]models.OrderEvent, 0, limit)
	for rows.Next() {
		var ev models.OrderEvent
		var evType, side, oType, status string
		var sl, tp sql.NullFloat64
		o := &ev.Order
		if err := rows.Scan(&ev.At, &o.Portfolio, &o.ID, &evType, &o.Pair, &side, &oType, &status,
			&o.Amount, &o.Price, &o.FilledPrice, &sl, &tp, &o.Strategy, &o.Confidence, &o.Reason, &o.Error, &o.VenueID,
			&ev.RealizedPnL, &o.LatencyMs, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		ev.Type = models.OrderEventType(evType)
		o.Side = models.Side(side)
		o.Type = models.OrderType(oType)
		o.Status = models.OrderStatus(status)
		o.StopLoss = fromNull(sl)
		o.TakeProfit = fromNull(tp)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHStore) SaveComposite(ctx context.Context, c *models.Composite) error {
	args, err := compositeArgs(c)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertComposite, args...); err != nil {
		return fmt.Errorf("save composite %s: %w", c.Symbol, err)
	}
	return nil
}

func orderEventArgs(ev models.OrderEvent) []interface{} {
	o := ev.Order
	return []interface{}{
		ev.At.UTC(),
		o.Portfolio,
		o.ID,
		string(ev.Type),
		o.Pair,
		string(o.Side),
		string(o.Type),
		string(o.Status),
		o.Amount,
		o.Price,
		o.FilledPrice,
		toNull(o.StopLoss),
		toNull(o.TakeProfit),
		o.Strategy,
		o.Confidence,
		o.Reason,
		o.Error,
		o.VenueID,
		ev.RealizedPnL,
		o.LatencyMs,
		o.CreatedAt.UTC(),
	}
}

func compositeArgs(c *models.Composite) ([]interface{}, error) {
	components, err := json.Marshal(c.Components)
	if err != nil {
		return nil, fmt.Errorf("encode components: %w", err)
	}
	failures := []byte("{}")
	if len(c.Failures) > 0 {
		if failures, err = json.Marshal(c.Failures); err != nil {
			return nil, fmt.Errorf("encode failures: %w", err)
		}
	}
	return []interface{}{
		c.Timestamp.UTC(),
		c.Symbol,
		c.Value,
		string(c.Action),
		c.Confidence,
		uint8(c.ModuleCount),
		string(components),
		string(failures),
	}, nil
}

func toNull(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
