package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/config"
)

const krakenURL = "wss://ws.kraken.com"

// Kraken names some assets differently from every other venue.
var krakenAssets = strings.NewReplacer("XBT", "BTC", "XDG", "DOGE")

type krakenParser struct {
	channel string
	depth   int
	pairs   []string
	url     string
	now     func() time.Time
}

func newKrakenParser(cfg config.FeedConfig) *krakenParser {
	return &krakenParser{channel: cfg.Channel, depth: cfg.Depth, pairs: cfg.Symbols, url: cfg.URL, now: nowUTC}
}

func (p *krakenParser) Name() string { return "kraken-" + p.channel }

func (p *krakenParser) Endpoint() string {
	if p.url != "" {
		return p.url
	}
	return krakenURL
}

type krakenSubscription struct {
	Name  string `json:"name"`
	Depth int    `json:"depth,omitempty"`
}

type krakenSubscribe struct {
	Event        string             `json:"event"`
	Pair         []string           `json:"pair"`
	Subscription krakenSubscription `json:"subscription"`
}

func (p *krakenParser) SubscribeMessages() ([][]byte, error) {
	msg := krakenSubscribe{
		Event:        "subscribe",
		Pair:         p.pairs,
		Subscription: krakenSubscription{Name: p.channel},
	}
	if p.channel == "book" {
		msg.Subscription.Depth = p.depth
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return [][]byte{b}, nil
}

func (p *krakenParser) KeepaliveMessage() []byte { return []byte(`{"event":"ping"}`) }

type krakenEvent struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

type krakenTicker struct {
	Close  []string `json:"c"`
	Volume []string `json:"v"`
}

type krakenBook struct {
	AsksSnapshot [][]string `json:"as"`
	BidsSnapshot [][]string `json:"bs"`
	Asks         [][]string `json:"a"`
	Bids         [][]string `json:"b"`
}

func (p *krakenParser) Parse(raw []byte) ([]models.MarketEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrUnrecognized
	}
	if trimmed[0] == '{' {
		return nil, parseKrakenEvent(trimmed)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(trimmed, &arr); err != nil {
		return nil, fmt.Errorf("kraken: %w", err)
	}
	if len(arr) < 2 {
		return nil, ErrUnrecognized
	}

	var pair, channel string
	if len(arr) >= 4 {
		_ = json.Unmarshal(arr[len(arr)-1], &pair)
		_ = json.Unmarshal(arr[len(arr)-2], &channel)
	}
	symbol := krakenSymbol(pair)
	if symbol == "" && len(p.pairs) == 1 {
		symbol = krakenSymbol(p.pairs[0])
	}
	if symbol == "" {
		return nil, fmt.Errorf("kraken: message without pair")
	}

	if strings.HasPrefix(channel, "book") || (channel == "" && p.channel == "book") {
		end := len(arr)
		if len(arr) >= 4 {
			end = len(arr) - 2
		}
		return p.parseBook(arr[1:end], symbol)
	}
	return p.parseTicker(arr[1], symbol)
}

func parseKrakenEvent(raw []byte) error {
	var ev krakenEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("kraken event: %w", err)
	}
	switch ev.Event {
	case "heartbeat", "pong", "systemStatus":
		return nil
	case "subscriptionStatus":
		if ev.Status == "error" {
			return fmt.Errorf("kraken subscription: %s", ev.ErrorMessage)
		}
		return nil
	}
	return ErrUnrecognized
}

// parseTicker accepts the documented object payload ({"c":[price, lot], ...})
// as well as a bare [price, volume] array.
func (p *krakenParser) parseTicker(data json.RawMessage, symbol string) ([]models.MarketEvent, error) {
	var priceStr, volStr, sizeStr string

	var t krakenTicker
	if err := json.Unmarshal(data, &t); err == nil && len(t.Close) > 0 {
		priceStr = t.Close[0]
		if len(t.Close) > 1 {
			sizeStr = t.Close[1]
		}
		if len(t.Volume) > 1 {
			volStr = t.Volume[1]
		}
	} else {
		var flat []string
		if err := json.Unmarshal(data, &flat); err != nil || len(flat) == 0 {
			return nil, fmt.Errorf("kraken ticker: unexpected payload")
		}
		priceStr = flat[0]
		if len(flat) > 1 {
			volStr = flat[1]
		}
	}

	price, err := parsePositive(priceStr)
	if err != nil {
		return nil, fmt.Errorf("kraken ticker price: %w", err)
	}
	return []models.MarketEvent{{Sample: &models.PriceSample{
		Symbol:    symbol,
		Exchange:  "kraken",
		Timestamp: p.now(),
		Price:     price,
		Volume:    parseOptional(volStr),
		TradeSize: parseOptional(sizeStr),
	}}}, nil
}

func (p *krakenParser) parseBook(parts []json.RawMessage, symbol string) ([]models.MarketEvent, error) {
	snap := &models.OrderBookSnapshot{Symbol: symbol, Exchange: "kraken", Timestamp: p.now()}
	for _, part := range parts {
		var b krakenBook
		if err := json.Unmarshal(part, &b); err != nil {
			return nil, fmt.Errorf("kraken book: %w", err)
		}
		for _, side := range []struct {
			dst *[]models.Level
			raw [][]string
		}{
			{&snap.Bids, b.BidsSnapshot}, {&snap.Bids, b.Bids},
			{&snap.Asks, b.AsksSnapshot}, {&snap.Asks, b.Asks},
		} {
			levels, err := parseLevels(side.raw)
			if err != nil {
				return nil, fmt.Errorf("kraken book: %w", err)
			}
			*side.dst = append(*side.dst, levels...)
		}
	}
	if snap.Bids == nil && snap.Asks == nil {
		return nil, ErrUnrecognized
	}
	return []models.MarketEvent{{Book: snap}}, nil
}

func krakenSymbol(pair string) string {
	if pair == "" {
		return ""
	}
	return models.NormalizeSymbol(krakenAssets.Replace(strings.ToUpper(pair)))
}
