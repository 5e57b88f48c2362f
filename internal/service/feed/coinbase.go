package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/config"
	"CryptoPulse/pkg/util"
)

const coinbaseURL = "wss://ws-feed.exchange.coinbase.com"

type coinbaseParser struct {
	products []string
	url      string
	now      func() time.Time
}

func newCoinbaseParser(cfg config.FeedConfig) *coinbaseParser {
	return &coinbaseParser{products: cfg.Symbols, url: cfg.URL, now: nowUTC}
}

func (p *coinbaseParser) Name() string { return "coinbase-ticker" }

func (p *coinbaseParser) Endpoint() string {
	if p.url != "" {
		return p.url
	}
	return coinbaseURL
}

func (p *coinbaseParser) SubscribeMessages() ([][]byte, error) {
	b, err := json.Marshal(map[string]interface{}{
		"type":        "subscribe",
		"product_ids": p.products,
		"channels":    []string{"ticker"},
	})
	if err != nil {
		return nil, err
	}
	return [][]byte{b}, nil
}

func (p *coinbaseParser) KeepaliveMessage() []byte { return nil }

type coinbaseMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Volume24h string `json:"volume_24h"`
	LastSize  string `json:"last_size"`
	Time      string `json:"time"`
	Message   string `json:"message"`
	Reason    string `json:"reason"`
}

func (p *coinbaseParser) Parse(raw []byte) ([]models.MarketEvent, error) {
	var m coinbaseMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("coinbase: %w", err)
	}
	switch m.Type {
	case "subscriptions", "heartbeat":
		return nil, nil
	case "error":
		return nil, fmt.Errorf("coinbase: %s %s", m.Message, m.Reason)
	case "ticker":
	default:
		return nil, ErrUnrecognized
	}

	price, err := parsePositive(m.Price)
	if err != nil {
		return nil, fmt.Errorf("coinbase ticker price: %w", err)
	}
	return []models.MarketEvent{{Sample: &models.PriceSample{
		Symbol:    models.NormalizeSymbol(m.ProductID),
		Exchange:  "coinbase",
		Timestamp: util.ParseTimeDefault(m.Time, p.now()),
		Price:     price,
		Volume:    parseOptional(m.Volume24h),
		TradeSize: parseOptional(m.LastSize),
	}}}, nil
}
