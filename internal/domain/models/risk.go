package models

import "time"

// TradeSignal is a candidate trade presented to the risk gate.
type TradeSignal struct {
	Pair       string   `json:"pair"`
	Side       Side     `json:"side"`
	Amount     float64  `json:"amount"`
	Price      float64  `json:"price"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
	Strategy   string   `json:"strategy"`
	Confidence float64  `json:"confidence"`
}

type Portfolio struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"`
}

// MarketContext carries the market readings the gate and the SL/TP scan need.
// Nil pointers mean the reading is unavailable and the check is skipped.
type MarketContext struct {
	Symbol     string   `json:"symbol"`
	Price      float64  `json:"price"`
	Volatility *float64 `json:"volatility,omitempty"`
	OIChange   *float64 `json:"oi_change,omitempty"`
	Sentiment  *float64 `json:"sentiment,omitempty"`
}

type RiskCheckResult struct {
	Allowed        bool        `json:"allowed"`
	Warnings       []string    `json:"warnings"`
	Errors         []string    `json:"errors"`
	SuggestedTrade TradeSignal `json:"suggested_adjusted_trade"`
}

type RiskLimits struct {
	MaxDailyTrades       int     `json:"max_daily_trades"`
	MaxDailyLossFraction float64 `json:"max_daily_loss_fraction"`
	MaxPositionFraction  float64 `json:"max_position_fraction"`
	VolatilityThreshold  float64 `json:"volatility_threshold"`
	StopTradingOnLoss    bool    `json:"stop_trading_on_loss"`
}

type DailyRiskStats struct {
	TradeCount      int       `json:"trade_count"`
	CumulativeLoss  float64   `json:"cumulative_loss"`
	DayStartBalance float64   `json:"day_start_balance"`
	LastReset       time.Time `json:"last_reset"`
}

type RiskStatus struct {
	Paused      bool           `json:"paused"`
	PauseReason string         `json:"pause_reason,omitempty"`
	Daily       DailyRiskStats `json:"daily"`
	Limits      RiskLimits     `json:"limits"`
}
