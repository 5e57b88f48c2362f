package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/pkg/logger"
	"CryptoPulse/pkg/util"
)

const (
	lossWarnFraction       = 0.8
	volatilityWarnFraction = 0.7
	oiRejectBelow          = -0.15
	oiWarnBelow            = -0.10
	sentimentRejectBelow   = -0.3
	sentimentWarnBelow     = -0.2
	overBalanceSuggestion  = 0.95
	snapshotTimeout        = 2 * time.Second
)

// RiskGate authorizes candidate trades for one portfolio against daily limits.
// Checks run in a fixed order and stop at the first hard failure.
type RiskGate struct {
	portfolio string
	limits    models.RiskLimits
	state     domrepo.RiskStateStore
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu          sync.Mutex
	paused      bool
	pauseReason string
	daily       models.DailyRiskStats
}

func NewRiskGate(portfolio string, limits models.RiskLimits, state domrepo.RiskStateStore, metrics domrepo.Metrics, log *logger.Logger) *RiskGate {
	return &RiskGate{
		portfolio: portfolio,
		limits:    limits,
		state:     state,
		metrics:   metrics,
		log:       log.With(logger.String("portfolio", portfolio)),
		now:       time.Now,
	}
}

// Restore loads the last snapshot, if any. A missing snapshot is not an error.
func (g *RiskGate) Restore(ctx context.Context) error {
	st, err := g.state.LoadRiskState(ctx, g.portfolio)
	if err != nil {
		return fmt.Errorf("load risk state: %w", err)
	}
	if st == nil {
		return nil
	}
	g.mu.Lock()
	g.paused, g.pauseReason, g.daily = st.Paused, st.PauseReason, st.Daily
	g.mu.Unlock()
	g.log.Info("risk state restored",
		logger.Bool("paused", st.Paused),
		logger.Int("trades", st.Daily.TradeCount),
		logger.Float64("loss", st.Daily.CumulativeLoss))
	return nil
}

// Check runs the gate. It may mutate state: daily rollover and the loss pause.
func (g *RiskGate) Check(trade models.TradeSignal, portfolio models.Portfolio, market models.MarketContext) models.RiskCheckResult {
	g.mu.Lock()
	res, changed := g.check(trade, portfolio, market)
	var snap models.RiskStatus
	if changed {
		snap = g.statusLocked()
	}
	g.mu.Unlock()

	if changed {
		g.persist(snap)
	}
	g.metrics.RecordRiskDecision(res.Allowed)
	if !res.Allowed {
		g.log.Warn("trade rejected by risk gate",
			logger.String("pair", trade.Pair),
			logger.Float64("amount", trade.Amount),
			logger.Strings("errors", res.Errors))
	}
	return res
}

func (g *RiskGate) check(trade models.TradeSignal, portfolio models.Portfolio, market models.MarketContext) (models.RiskCheckResult, bool) {
	res := models.RiskCheckResult{Allowed: true, Warnings: []string{}, Errors: []string{}, SuggestedTrade: trade}
	reject := func(format string, args ...interface{}) models.RiskCheckResult {
		res.Allowed = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
		return res
	}
	changed := false

	if g.paused {
		return reject("Trading is paused: %s", g.pauseReason), changed
	}

	balance := portfolio.Balance
	if now := g.now(); !util.SameDay(now, g.daily.LastReset) && balance > 0 {
		g.resetLocked(balance, now)
		changed = true
	}

	if g.daily.TradeCount >= g.limits.MaxDailyTrades {
		return reject("Daily trade limit reached: %d trades", g.limits.MaxDailyTrades), changed
	}

	if balance > 0 {
		if frac := trade.Amount / balance; frac > g.limits.MaxPositionFraction {
			res.SuggestedTrade.Amount = balance * g.limits.MaxPositionFraction
			res.Warnings = append(res.Warnings, fmt.Sprintf("Suggested position size: $%.2f", res.SuggestedTrade.Amount))
			return reject("Position size %.2f%% exceeds maximum %.2f%%", frac*100, g.limits.MaxPositionFraction*100), changed
		}
	}

	if start := g.daily.DayStartBalance; start > 0 {
		loss := start - balance
		if loss < 0 {
			loss = 0
		}
		frac := loss / start
		if frac >= g.limits.MaxDailyLossFraction {
			if g.limits.StopTradingOnLoss {
				g.pauseLocked(fmt.Sprintf("Daily loss limit exceeded: %.2f%%", frac*100))
				changed = true
			}
			return reject("Daily loss limit reached: %.2f%%", frac*100), changed
		}
		if frac > g.limits.MaxDailyLossFraction*lossWarnFraction {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Approaching daily loss limit: %.2f%%", frac*100))
		}
	}

	if v := market.Volatility; v != nil {
		if *v >= g.limits.VolatilityThreshold {
			return reject("Volatility %.2f%% exceeds threshold %.2f%%", *v*100, g.limits.VolatilityThreshold*100), changed
		}
		if *v > g.limits.VolatilityThreshold*volatilityWarnFraction {
			res.Warnings = append(res.Warnings, fmt.Sprintf("High volatility detected: %.2f%%", *v*100))
		}
	}

	if oi := market.OIChange; oi != nil {
		if *oi < oiRejectBelow {
			return reject("Open interest collapsing: %.2f%%", *oi*100), changed
		}
		if *oi < oiWarnBelow {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Open interest declining: %.2f%%", *oi*100))
		}
	}

	if s := market.Sentiment; s != nil {
		if *s < sentimentRejectBelow {
			return reject("Negative sentiment dominance: %.2f", *s), changed
		}
		if *s < sentimentWarnBelow {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Negative sentiment detected: %.2f", *s))
		}
	}

	if balance <= 0 {
		return reject("Portfolio balance is zero or negative"), changed
	}

	if trade.Amount > balance {
		res.SuggestedTrade.Amount = balance * overBalanceSuggestion
		res.Warnings = append(res.Warnings, fmt.Sprintf("Suggested trade amount: $%.2f", res.SuggestedTrade.Amount))
		return reject("Trade amount $%.2f exceeds balance $%.2f", trade.Amount, balance), changed
	}
	return res, changed
}

// RecordTrade counts an executed trade and its realized PnL. Losses that
// cross the daily limit pause trading when configured.
func (g *RiskGate) RecordTrade(trade models.TradeSignal, pnl float64) {
	g.mu.Lock()
	g.daily.TradeCount++
	if pnl < 0 {
		g.daily.CumulativeLoss += -pnl
	}
	if g.limits.StopTradingOnLoss && g.daily.DayStartBalance > 0 {
		frac := g.daily.CumulativeLoss / g.daily.DayStartBalance
		if frac >= g.limits.MaxDailyLossFraction && !g.paused {
			g.pauseLocked(fmt.Sprintf("Daily loss limit exceeded: %.2f%%", frac*100))
		}
	}
	snap := g.statusLocked()
	g.mu.Unlock()

	g.log.Debug("trade recorded",
		logger.String("pair", trade.Pair),
		logger.Float64("pnl", pnl),
		logger.Int("trades_today", snap.Daily.TradeCount))
	g.persist(snap)
}

// ResetDaily starts a new trading day at balance and clears any pause.
func (g *RiskGate) ResetDaily(balance float64) {
	g.mu.Lock()
	g.resetLocked(balance, g.now())
	snap := g.statusLocked()
	g.mu.Unlock()
	g.persist(snap)
}

func (g *RiskGate) Pause(reason string) {
	g.mu.Lock()
	g.pauseLocked(reason)
	snap := g.statusLocked()
	g.mu.Unlock()
	g.persist(snap)
}

func (g *RiskGate) Resume() {
	g.mu.Lock()
	g.paused, g.pauseReason = false, ""
	snap := g.statusLocked()
	g.mu.Unlock()
	g.log.Info("trading resumed")
	g.persist(snap)
}

func (g *RiskGate) Status() models.RiskStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

// Snapshot writes the current state to the state store.
func (g *RiskGate) Snapshot(ctx context.Context) error {
	return g.state.SaveRiskState(ctx, g.portfolio, g.Status())
}

func (g *RiskGate) resetLocked(balance float64, now time.Time) {
	g.daily = models.DailyRiskStats{DayStartBalance: balance, LastReset: now}
	g.paused, g.pauseReason = false, ""
	g.log.Info("daily risk stats reset", logger.Float64("balance", balance))
}

func (g *RiskGate) pauseLocked(reason string) {
	g.paused, g.pauseReason = true, reason
	g.log.Warn("trading paused", logger.String("reason", reason))
}

func (g *RiskGate) statusLocked() models.RiskStatus {
	return models.RiskStatus{
		Paused:      g.paused,
		PauseReason: g.pauseReason,
		Daily:       g.daily,
		Limits:      g.limits,
	}
}

func (g *RiskGate) persist(st models.RiskStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	if err := g.state.SaveRiskState(ctx, g.portfolio, st); err != nil {
		g.metrics.RecordError("risk_snapshot")
		g.log.Warn("risk snapshot failed", logger.Error(err))
	}
}
