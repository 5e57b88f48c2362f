package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"CryptoPulse/internal/domain/models"
	domsvc "CryptoPulse/internal/domain/service"
	xhttp "CryptoPulse/pkg/http"
)

var (
	_ domsvc.ExecutionBackend = (*LiveBackend)(nil)
	_ domsvc.OrderCanceler    = (*LiveBackend)(nil)
)

type liveOrderRequest struct {
	ClientID string  `json:"client_order_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Type     string  `json:"type"`
	Amount   float64 `json:"quote_amount"`
	Price    float64 `json:"price"`
}

type liveOrderResponse struct {
	OrderID     string  `json:"order_id"`
	Status      string  `json:"status"`
	FilledPrice float64 `json:"filled_price"`
}

// LiveBackend posts orders to a venue REST gateway.
type LiveBackend struct {
	baseURL string
	client  *xhttp.Client
}

func NewLiveBackend(baseURL, apiKey string, timeout time.Duration) *LiveBackend {
	opts := []xhttp.ClientOption{xhttp.WithTimeout(timeout)}
	if apiKey != "" {
		opts = append(opts, xhttp.WithHeader("X-API-Key", apiKey))
	}
	return &LiveBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
	}
}

func (*LiveBackend) Name() string { return "live" }

func (b *LiveBackend) Submit(ctx context.Context, o *models.Order) (models.ExecutionReport, error) {
	var resp liveOrderResponse
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     b.baseURL + "/orders",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: liveOrderRequest{
			ClientID: o.ID,
			Symbol:   o.Pair,
			Side:     string(o.Side),
			Type:     string(o.Type),
			Amount:   o.Amount,
			Price:    o.Price,
		},
	}, &resp)
	var se *xhttp.StatusError
	if errors.As(err, &se) && !se.Retryable() {
		// the venue looked at the order and refused it
		return models.ExecutionReport{Status: models.StatusRejected}, nil
	}
	if err != nil {
		return models.ExecutionReport{}, fmt.Errorf("submit order %s: %w", o.ID, err)
	}

	status, err := venueStatus(resp.Status)
	if err != nil {
		return models.ExecutionReport{}, fmt.Errorf("submit order %s: %w", o.ID, err)
	}
	return models.ExecutionReport{Status: status, FilledPrice: resp.FilledPrice, VenueID: resp.OrderID}, nil
}

// Cancel asks the venue to cancel a resting order.
func (b *LiveBackend) Cancel(ctx context.Context, o *models.Order) error {
	id := o.VenueID
	if id == "" {
		id = o.ID
	}
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodDelete,
		URL:    b.baseURL + "/orders/" + id,
	}, nil)
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", o.ID, err)
	}
	return nil
}

func venueStatus(s string) (models.OrderStatus, error) {
	switch strings.ToUpper(s) {
	case "FILLED", "DONE":
		return models.StatusFilled, nil
	case "NEW", "OPEN", "ACCEPTED":
		return models.StatusOpen, nil
	case "REJECTED":
		return models.StatusRejected, nil
	}
	return "", fmt.Errorf("unknown venue status %q", s)
}
