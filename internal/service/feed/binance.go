package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/config"
	"CryptoPulse/pkg/util"
)

const binanceBaseURL = "wss://stream.binance.com:9443"

// binanceParser handles the URL-subscribed <sym>@ticker and
// <sym>@depth<N>@100ms streams, raw or wrapped in the combined-stream envelope.
type binanceParser struct {
	channel string
	depth   int
	symbols []string
	url     string
	now     func() time.Time
}

func newBinanceParser(cfg config.FeedConfig) *binanceParser {
	syms := make([]string, len(cfg.Symbols))
	for i, s := range cfg.Symbols {
		syms[i] = strings.ToLower(models.NormalizeSymbol(s))
	}
	return &binanceParser{channel: cfg.Channel, depth: cfg.Depth, symbols: syms, url: cfg.URL, now: nowUTC}
}

func (p *binanceParser) Name() string { return "binance-" + p.channel }

func (p *binanceParser) stream(sym string) string {
	if p.channel == "depth" {
		return sym + "@depth" + strconv.Itoa(p.depth) + "@100ms"
	}
	return sym + "@ticker"
}

func (p *binanceParser) Endpoint() string {
	if p.url != "" {
		return p.url
	}
	if len(p.symbols) == 1 {
		return binanceBaseURL + "/ws/" + p.stream(p.symbols[0])
	}
	streams := make([]string, len(p.symbols))
	for i, s := range p.symbols {
		streams[i] = p.stream(s)
	}
	return binanceBaseURL + "/stream?streams=" + strings.Join(streams, "/")
}

func (p *binanceParser) SubscribeMessages() ([][]byte, error) { return nil, nil }

func (p *binanceParser) KeepaliveMessage() []byte { return nil }

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceTicker struct {
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Last      string `json:"c"`
	Volume    string `json:"v"`
	LastQty   string `json:"Q"`
}

type binanceDepth struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	EventTime    int64      `json:"E"`
	Symbol       string     `json:"s"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (p *binanceParser) Parse(raw []byte) ([]models.MarketEvent, error) {
	body, streamSym := raw, ""
	var env binanceEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
		streamSym, _, _ = strings.Cut(env.Stream, "@")
	}

	if p.channel == "depth" {
		return p.parseDepth(body, streamSym)
	}
	return p.parseTicker(body)
}

func (p *binanceParser) parseTicker(body []byte) ([]models.MarketEvent, error) {
	var t binanceTicker
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("binance ticker: %w", err)
	}
	if t.Last == "" || t.Symbol == "" {
		if isBinanceAck(body) {
			return nil, nil
		}
		return nil, ErrUnrecognized
	}
	price, err := parsePositive(t.Last)
	if err != nil {
		return nil, fmt.Errorf("binance ticker price: %w", err)
	}
	ts := p.now()
	if t.EventTime > 0 {
		ts = util.FromUnix(t.EventTime)
	}
	return []models.MarketEvent{{Sample: &models.PriceSample{
		Symbol:    models.NormalizeSymbol(t.Symbol),
		Exchange:  "binance",
		Timestamp: ts,
		Price:     price,
		Volume:    parseOptional(t.Volume),
		TradeSize: parseOptional(t.LastQty),
	}}}, nil
}

func (p *binanceParser) parseDepth(body []byte, streamSym string) ([]models.MarketEvent, error) {
	var d binanceDepth
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("binance depth: %w", err)
	}
	if d.Bids == nil && d.Asks == nil {
		if isBinanceAck(body) {
			return nil, nil
		}
		return nil, ErrUnrecognized
	}

	sym := d.Symbol
	if sym == "" {
		sym = streamSym
	}
	if sym == "" && len(p.symbols) == 1 {
		sym = p.symbols[0]
	}
	if sym == "" {
		return nil, fmt.Errorf("binance depth: cannot attribute snapshot to a symbol")
	}

	bids, err := parseLevels(d.Bids)
	if err != nil {
		return nil, fmt.Errorf("binance bids: %w", err)
	}
	asks, err := parseLevels(d.Asks)
	if err != nil {
		return nil, fmt.Errorf("binance asks: %w", err)
	}
	ts := p.now()
	if d.EventTime > 0 {
		ts = util.FromUnix(d.EventTime)
	}
	return []models.MarketEvent{{Book: &models.OrderBookSnapshot{
		Symbol:    models.NormalizeSymbol(sym),
		Exchange:  "binance",
		Timestamp: ts,
		Bids:      bids,
		Asks:      asks,
	}}}, nil
}

// isBinanceAck matches {"result":null,"id":N} replies.
func isBinanceAck(body []byte) bool {
	var ack struct {
		ID *int64 `json:"id"`
	}
	return json.Unmarshal(body, &ack) == nil && ack.ID != nil
}
