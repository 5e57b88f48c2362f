package usecase

import (
	"context"

	"CryptoPulse/internal/domain/models"
	"CryptoPulse/pkg/logger"
)

type AutoTradeConfig struct {
	Amount        float64
	StopLossPct   float64
	TakeProfitPct float64
	Strategy      string
}

// AutoTrader turns directional composites into candidate trades.
type AutoTrader struct {
	orders  *OrderManager
	markets *MarketContextBuilder
	cfg     AutoTradeConfig
	log     *logger.Logger
}

func NewAutoTrader(orders *OrderManager, markets *MarketContextBuilder, cfg AutoTradeConfig, log *logger.Logger) *AutoTrader {
	if cfg.Strategy == "" {
		cfg.Strategy = "composite"
	}
	return &AutoTrader{orders: orders, markets: markets, cfg: cfg, log: log}
}

// OnComposite matches CompositeListener.
func (a *AutoTrader) OnComposite(ctx context.Context, c *models.Composite) {
	side, ok := c.Action.Side()
	if !ok {
		return
	}
	market := a.markets.Build(ctx, c.Symbol)
	if market.Price <= 0 {
		a.log.Debug("no price for auto trade", logger.String("symbol", c.Symbol))
		return
	}

	trade := models.TradeSignal{
		Pair:       c.Symbol,
		Side:       side,
		Amount:     a.cfg.Amount,
		Price:      market.Price,
		Strategy:   a.cfg.Strategy,
		Confidence: c.Confidence,
	}
	if side == models.SideBuy {
		if a.cfg.StopLossPct > 0 {
			sl := market.Price * (1 - a.cfg.StopLossPct)
			trade.StopLoss = &sl
		}
		if a.cfg.TakeProfitPct > 0 {
			tp := market.Price * (1 + a.cfg.TakeProfitPct)
			trade.TakeProfit = &tp
		}
	}

	res := a.orders.ExecuteTrade(ctx, trade, market)
	if !res.Success {
		a.log.Info("auto trade not executed",
			logger.String("symbol", c.Symbol),
			logger.String("action", string(c.Action)),
			logger.String("message", res.Message),
			logger.Strings("errors", res.Risk.Errors))
	}
}
