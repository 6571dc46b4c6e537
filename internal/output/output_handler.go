package output

import (
	"context"

	"github.com/Doot-Foundation/example/internal/models"
)

type OutputHandler interface {
	// WritePrice writes a fetched price to the output.
	WritePrice(ctx context.Context, record *models.PriceRecord) error

	// GetLatestPrice returns the most recently fetched price for token, or nil if none is stored.
	GetLatestPrice(ctx context.Context, token string) (*models.PriceRecord, error)

	// Close closes the output handler.
	Close() error
}
