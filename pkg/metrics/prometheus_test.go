package metrics

import (
	"testing"

	"CryptoPulse/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordFeedState("binance-ticker", models.FeedDormant)
	r.RecordRiskDecision(true)
	r.RecordRiskDecision(false)
	r.RecordRiskDecision(false)
	r.RecordComposite("BTCUSDT", 0.31, models.ActionLong)
	r.RecordOrder(models.SideBuy, models.StatusFilled)

	assert.Equal(t, 5.0, testutil.ToFloat64(r.feedState.WithLabelValues("binance-ticker")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.riskDecisions.WithLabelValues("allowed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.riskDecisions.WithLabelValues("rejected")))
	assert.Equal(t, 0.31, testutil.ToFloat64(r.composite.WithLabelValues("BTCUSDT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actions.WithLabelValues("BTCUSDT", "LONG")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.orders.WithLabelValues("BUY", "FILLED")))
}
