package execution

import (
	"context"

	"CryptoPulse/internal/domain/models"
	domsvc "CryptoPulse/internal/domain/service"
)

var _ domsvc.ExecutionBackend = (*PaperBackend)(nil)

// PaperBackend fills every order instantly at its own price.
type PaperBackend struct{}

func NewPaperBackend() *PaperBackend { return &PaperBackend{} }

func (*PaperBackend) Name() string { return "paper" }

func (*PaperBackend) Submit(ctx context.Context, o *models.Order) (models.ExecutionReport, error) {
	if err := ctx.Err(); err != nil {
		return models.ExecutionReport{}, err
	}
	return models.ExecutionReport{
		Status:      models.StatusFilled,
		FilledPrice: o.Price,
		VenueID:     "paper-" + o.ID,
	}, nil
}
