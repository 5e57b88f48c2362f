package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"CryptoPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaperBackend_FillsAtOrderPrice(t *testing.T) {
	rep, err := NewPaperBackend().Submit(context.Background(), &models.Order{ID: "o1", Price: 50000})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, rep.Status)
	assert.Equal(t, 50000.0, rep.FilledPrice)
	assert.Equal(t, "paper-o1", rep.VenueID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPaperBackend().Submit(ctx, &models.Order{ID: "o2"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLiveBackend_SubmitAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-API-Key"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/orders":
			var req liveOrderRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "BTCUSDT", req.Symbol)
			assert.Equal(t, "BUY", req.Side)
			_, _ = w.Write([]byte(`{"order_id":"v-1","status":"filled","filled_price":50010}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/orders/v-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	b := NewLiveBackend(srv.URL+"/", "k", time.Second)
	o := &models.Order{ID: "o1", Pair: "BTCUSDT", Side: models.SideBuy, Type: models.OrderMarket, Amount: 100, Price: 50000}
	rep, err := b.Submit(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFilled, rep.Status)
	assert.Equal(t, 50010.0, rep.FilledPrice)
	assert.Equal(t, "v-1", rep.VenueID)

	o.VenueID = rep.VenueID
	assert.NoError(t, b.Cancel(context.Background(), o))
	assert.Error(t, b.Cancel(context.Background(), &models.Order{ID: "missing"}))
}

func TestLiveBackend_VenueErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("X-API-Key") {
		case "":
			_, _ = w.Write([]byte(`{"order_id":"v-2","status":"weird"}`))
		case "reject":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":"insufficient balance"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	_, err := NewLiveBackend(srv.URL, "", time.Second).Submit(context.Background(), &models.Order{ID: "o"})
	assert.ErrorContains(t, err, "unknown venue status")

	rep, err := NewLiveBackend(srv.URL, "reject", time.Second).Submit(context.Background(), &models.Order{ID: "o"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rep.Status)

	_, err = NewLiveBackend(srv.URL, "k", time.Second).Submit(context.Background(), &models.Order{ID: "o"})
	assert.ErrorContains(t, err, "unexpected status 500")
}

func TestVenueStatus(t *testing.T) {
	for in, want := range map[string]models.OrderStatus{
		"FILLED":   models.StatusFilled,
		"new":      models.StatusOpen,
		"REJECTED": models.StatusRejected,
	} {
		got, err := venueStatus(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
