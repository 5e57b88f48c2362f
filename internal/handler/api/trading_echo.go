package api

import (
	"errors"
	"net/http"
	"time"

	"CryptoPulse/internal/domain/models"
	domrepo "CryptoPulse/internal/domain/repository"
	"CryptoPulse/internal/service/metrics"
	"CryptoPulse/internal/service/ratelimit"
	"CryptoPulse/internal/usecase"
	xhttp "CryptoPulse/pkg/http"
	xlogger "CryptoPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// FeedStatuses reports the state of every feed connection.
type FeedStatuses interface {
	Statuses() []models.FeedStatus
}

// TradingEchoHandler is the operator API over risk, order and feed state.
type TradingEchoHandler struct {
	logger    *xlogger.Logger
	portfolio string
	gate      *usecase.RiskGate
	orders    *usecase.OrderManager
	markets   *usecase.MarketContextBuilder
	archive   domrepo.OrderHistoryStore
	feeds     FeedStatuses
	rl        *ratelimit.Limiter
}

func NewTradingEchoHandler(
	logger *xlogger.Logger,
	portfolio string,
	gate *usecase.RiskGate,
	orders *usecase.OrderManager,
	markets *usecase.MarketContextBuilder,
	archive domrepo.OrderHistoryStore,
	feeds FeedStatuses,
	rl *ratelimit.Limiter,
) *TradingEchoHandler {
	metrics.Register()
	return &TradingEchoHandler{
		logger:    logger,
		portfolio: portfolio,
		gate:      gate,
		orders:    orders,
		markets:   markets,
		archive:   archive,
		feeds:     feeds,
		rl:        rl,
	}
}

func (h *TradingEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/risk/status", h.observe("risk_status", h.RiskStatus))
	g.POST("/risk/pause", h.observe("risk_pause", h.Pause))
	g.POST("/risk/resume", h.observe("risk_resume", h.Resume))
	g.GET("/orders", h.observe("orders", h.Orders))
	g.GET("/orders/active", h.observe("orders_active", h.ActiveOrders))
	g.GET("/orders/archive", h.observe("orders_archive", h.Archive))
	g.DELETE("/orders/:id", h.observe("orders_cancel", h.CancelOrder))
	g.GET("/positions", h.observe("positions", h.Positions))
	g.GET("/feeds", h.observe("feeds", h.Feeds))
	g.POST("/trades", h.observe("trades", h.Trade))
}

func (h *TradingEchoHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if err != nil || c.Response().Status >= http.StatusInternalServerError {
			metrics.APIErrors.WithLabelValues(endpoint).Inc()
		}
		return err
	}
}

func (h *TradingEchoHandler) RiskStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.gate.Status())
}

func (h *TradingEchoHandler) Pause(c echo.Context) error {
	req := &models.PauseRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.gate.Pause(req.Reason)
	return xhttp.SuccessResponse(c, h.gate.Status())
}

func (h *TradingEchoHandler) Resume(c echo.Context) error {
	h.gate.Resume()
	return xhttp.SuccessResponse(c, h.gate.Status())
}

func (h *TradingEchoHandler) Orders(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.orders.History(req.Limit)
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) ActiveOrders(c echo.Context) error {
	rows := h.orders.ActiveOrders()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) Archive(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.archive.ListOrderEvents(c.Request().Context(), h.portfolio, req.Limit)
	if err != nil {
		h.logger.Error("order archive query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("order archive unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *TradingEchoHandler) CancelOrder(c echo.Context) error {
	id := c.Param("id")
	o, err := h.orders.CancelOrder(c.Request().Context(), id)
	switch {
	case errors.Is(err, usecase.ErrOrderNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("order %s not found", id))
	case errors.Is(err, usecase.ErrOrderTerminal):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError(err.Error()))
	case err != nil:
		h.logger.Error("cancel order failed", xlogger.String("order_id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("venue cancel failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, o)
}

func (h *TradingEchoHandler) Positions(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"portfolio": h.orders.Portfolio(),
		"positions": h.orders.Positions(),
	})
}

func (h *TradingEchoHandler) Feeds(c echo.Context) error {
	rows := h.feeds.Statuses()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

// Trade runs a manual trade through the same gate as automatic ones.
func (h *TradingEchoHandler) Trade(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}
	req := &models.TradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	trade := models.TradeSignal{
		Pair:       models.NormalizeSymbol(req.Pair),
		Side:       models.Side(req.Side),
		Amount:     req.Amount,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		Strategy:   req.Strategy,
		Confidence: req.Confidence,
	}
	res := h.orders.ExecuteTrade(ctx, trade, h.markets.Build(ctx, trade.Pair))
	if !res.Success {
		return xhttp.UnprocessableResponse(c, res)
	}
	return xhttp.CreatedResponse(c, res)
}
