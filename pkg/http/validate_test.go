package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderRequest struct {
	Pair   string  `json:"pair" validate:"required,pair"`
	Side   string  `json:"side" validate:"required,oneof=BUY SELL"`
	Amount float64 `json:"amount" validate:"gt=0"`
	Tag    string  `json:"tag" default:"manual"`
}

func bindJSON(body string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateRequest(t *testing.T) {
	var ok orderRequest
	assert.Nil(t, ReadAndValidateRequest(bindJSON(`{"pair":"XBT/USD","side":"SELL","amount":5}`), &ok))
	assert.Equal(t, "manual", ok.Tag)

	var bad orderRequest
	errs := ReadAndValidateRequest(bindJSON(`{"pair":"??","side":"HOLD"}`), &bad)
	require.Len(t, errs, 3)
	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	assert.Equal(t, "ERR_PAIR", byField["pair"].Code)
	assert.Equal(t, "ERR_ONEOF", byField["side"].Code)
	assert.Equal(t, []string{"BUY", "SELL"}, byField["side"].Params["options"])
	assert.Equal(t, "amount must be greater than 0", byField["amount"].Message)

	errs = ReadAndValidateRequest(bindJSON(`{"pair":`), &bad)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
