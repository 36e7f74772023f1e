package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/inventory/domain"
)

// Ledger is the only component allowed to change available stock. Both
// operations run against the caller's atomic unit.
type Ledger struct {
	log *slog.Logger
}

func NewLedger(log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{log: log}
}

func (l *Ledger) Reserve(ctx context.Context, w StockWriter, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	ok, err := w.DecrementAvailable(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if !ok {
		l.log.DebugContext(ctx, "stock reserve rejected", "product_id", productID, "qty", qty)
		return domain.ErrOutOfStockOrNotFound
	}
	return nil
}

// Release must be called exactly once per successful Reserve; the reservation
// state machine's ACTIVE-only guard is what guarantees that.
func (l *Ledger) Release(ctx context.Context, w StockWriter, productID uuid.UUID, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}
	if err := w.IncrementAvailable(ctx, productID, qty); err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}
