package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndParse_JSONAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BUY", body["side"])

		_, _ = w.Write([]byte(`{"status":"FILLED","filled_price":50000}`))
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(time.Second), WithHeader("X-API-Key", "secret"))
	var out struct {
		Status      string  `json:"status"`
		FilledPrice float64 `json:"filled_price"`
	}
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodPost,
		URL:         srv.URL,
		QueryParams: map[string][]string{"symbol": {"BTCUSDT"}},
		Body:        map[string]string{"side": "BUY"},
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "FILLED", out.Status)
	assert.Equal(t, 50000.0, out.FilledPrice)
}

func TestSendAndParse_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("down"))
	}))
	defer srv.Close()

	err := NewClient().SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, nil)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.Equal(t, "down", se.Body)
	assert.True(t, se.Retryable())
}
