package feed

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/config"
)

// ErrUnrecognized is returned by parsers for payloads that are neither data
// nor a known control message.
var ErrUnrecognized = errors.New("feed: unrecognized payload")

// Parser turns one exchange's wire format into market events. It is chosen
// once per connection.
type Parser interface {
	Name() string
	Endpoint() string
	// SubscribeMessages returns the frames to send after dialing; nil when the
	// subscription is expressed in the URL.
	SubscribeMessages() ([][]byte, error)
	// Parse returns (nil, nil) for control frames such as acks and heartbeats.
	Parse(raw []byte) ([]models.MarketEvent, error)
	// KeepaliveMessage is the exchange's text ping; nil means use a websocket ping frame.
	KeepaliveMessage() []byte
}

// NewParser builds the parser for a configured feed.
func NewParser(cfg config.FeedConfig) (Parser, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("feed %s/%s: no symbols", cfg.Exchange, cfg.Channel)
	}
	switch cfg.Exchange {
	case "binance":
		if cfg.Channel != "ticker" && cfg.Channel != "depth" {
			break
		}
		return newBinanceParser(cfg), nil
	case "kraken":
		if cfg.Channel != "ticker" && cfg.Channel != "book" {
			break
		}
		return newKrakenParser(cfg), nil
	case "coinbase":
		if cfg.Channel != "ticker" {
			break
		}
		return newCoinbaseParser(cfg), nil
	default:
		return nil, fmt.Errorf("feed: unsupported exchange %q", cfg.Exchange)
	}
	return nil, fmt.Errorf("feed: exchange %q has no %q channel", cfg.Exchange, cfg.Channel)
}

func parsePositive(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("value %q out of range", s)
	}
	return v, nil
}

// parseOptional returns 0 for empty or invalid input.
func parseOptional(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// parseLevels reads [price, qty, ...] string tuples. Zero quantities are dropped.
func parseLevels(raw [][]string) ([]models.Level, error) {
	levels := make([]models.Level, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			return nil, fmt.Errorf("level has %d fields", len(l))
		}
		p, err := parsePositive(l[0])
		if err != nil {
			return nil, fmt.Errorf("level price: %w", err)
		}
		q := parseOptional(l[1])
		if q == 0 {
			continue
		}
		levels = append(levels, models.Level{Price: p, Quantity: q})
	}
	return levels, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
