package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
)

type OrderStore interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error
	GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error)
}
