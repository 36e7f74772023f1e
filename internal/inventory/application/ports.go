package application

import (
	"context"

	"github.com/google/uuid"
)

// StockWriter is the slice of an atomic unit the ledger needs.
type StockWriter interface {
	DecrementAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	IncrementAvailable(ctx context.Context, productID uuid.UUID, qty int) error
}
