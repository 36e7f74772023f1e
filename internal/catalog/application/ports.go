package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
)

type ProductStore interface {
	CreateProduct(ctx context.Context, p domain.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (domain.Product, error)
	ListProducts(ctx context.Context, page store.Page) ([]domain.Product, error)
}
