package metrics

import (
	"CryptoPulse/internal/domain/models"
	"CryptoPulse/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ repository.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	feedState     *prometheus.GaugeVec
	messages      *prometheus.CounterVec
	parseDrops    *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	signalValue   *prometheus.GaugeVec
	composite     *prometheus.GaugeVec
	actions       *prometheus.CounterVec
	sourceFailure *prometheus.CounterVec
	riskDecisions *prometheus.CounterVec
	orders        *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		feedState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptopulse_feed_state",
				Help: "Current connection state per feed (0=disconnected .. 5=dormant)",
			},
			[]string{"feed"},
		),
		messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_feed_messages_total",
				Help: "Parsed market records received per feed",
			},
			[]string{"feed", "kind"},
		),
		parseDrops: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_feed_parse_drops_total",
				Help: "Payloads dropped because they could not be parsed",
			},
			[]string{"feed"},
		),
		reconnects: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_feed_reconnects_total",
				Help: "Reconnect attempts per feed",
			},
			[]string{"feed"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptopulse_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		signalValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptopulse_signal_value",
				Help: "Latest normalized value per signal source",
			},
			[]string{"source", "symbol"},
		),
		composite: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptopulse_composite_signal",
				Help: "Latest fused composite signal",
			},
			[]string{"symbol"},
		),
		actions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_composite_actions_total",
				Help: "Composite actions emitted",
			},
			[]string{"symbol", "action"},
		),
		sourceFailure: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_signal_source_failures_total",
				Help: "Signal sources that failed and were replaced by their neutral value",
			},
			[]string{"source"},
		),
		riskDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_risk_decisions_total",
				Help: "Risk gate decisions",
			},
			[]string{"outcome"},
		),
		orders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_orders_total",
				Help: "Orders by side and final status",
			},
			[]string{"side", "status"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptopulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptopulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordFeedState(feed string, state models.FeedState) {
	r.feedState.WithLabelValues(feed).Set(float64(state))
}

func (r *Recorder) RecordMessage(feed, kind string) {
	r.messages.WithLabelValues(feed, kind).Inc()
}

func (r *Recorder) RecordParseDrop(feed string) {
	r.parseDrops.WithLabelValues(feed).Inc()
}

func (r *Recorder) RecordReconnect(feed string) {
	r.reconnects.WithLabelValues(feed).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

func (r *Recorder) RecordSignal(source, symbol string, value float64) {
	r.signalValue.WithLabelValues(source, symbol).Set(value)
}

func (r *Recorder) RecordComposite(symbol string, value float64, action models.Action) {
	r.composite.WithLabelValues(symbol).Set(value)
	r.actions.WithLabelValues(symbol, string(action)).Inc()
}

func (r *Recorder) RecordSourceFailure(source string) {
	r.sourceFailure.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordRiskDecision(allowed bool) {
	outcome := "rejected"
	if allowed {
		outcome = "allowed"
	}
	r.riskDecisions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordOrder(side models.Side, status models.OrderStatus) {
	r.orders.WithLabelValues(string(side), string(status)).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
