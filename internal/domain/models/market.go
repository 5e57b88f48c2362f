package models

import (
	"strings"
	"time"
)

// NormalizeSymbol turns exchange pair notations (BTC/USDT, btc-usdt, XBT/USD)
// into the canonical upper-case form without separators.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer("/", "", "-", "", "_", "").Replace(s)
}

// PriceSample is one observed ticker update. Volume is what the venue reports
// on the ticker (often a rolling 24h figure); TradeSize is the size of the last
// trade when the venue includes it.
type PriceSample struct {
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	TradeSize float64   `json:"trade_size,omitempty"`
}

type Level struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBookSnapshot replaces all prior levels for its symbol.
type OrderBookSnapshot struct {
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	Timestamp time.Time `json:"timestamp"`
	Bids      []Level   `json:"bids"`
	Asks      []Level   `json:"asks"`
}

// MarketEvent is what a feed parser emits: exactly one of Sample or Book is set.
type MarketEvent struct {
	Sample *PriceSample
	Book   *OrderBookSnapshot
}

func (e MarketEvent) Symbol() string {
	switch {
	case e.Sample != nil:
		return e.Sample.Symbol
	case e.Book != nil:
		return e.Book.Symbol
	}
	return ""
}

func (e MarketEvent) Timestamp() time.Time {
	switch {
	case e.Sample != nil:
		return e.Sample.Timestamp
	case e.Book != nil:
		return e.Book.Timestamp
	}
	return time.Time{}
}
