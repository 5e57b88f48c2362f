package models

// Requests for the operator HTTP endpoints.

type TradeRequest struct {
	Pair       string   `json:"pair" validate:"required,pair"`
	Side       string   `json:"side" validate:"required,oneof=BUY SELL"`
	Amount     float64  `json:"amount" validate:"gt=0"`
	Price      float64  `json:"price" validate:"gte=0"`
	StopLoss   *float64 `json:"stop_loss" validate:"omitempty,gt=0"`
	TakeProfit *float64 `json:"take_profit" validate:"omitempty,gt=0"`
	Strategy   string   `json:"strategy" default:"manual"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
}

type PauseRequest struct {
	Reason string `json:"reason" default:"manual pause" validate:"max=200"`
}

type HistoryRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}
