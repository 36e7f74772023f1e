package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidProduct = errors.New("invalid product")
)

type Product struct {
	ID             uuid.UUID
	Name           string
	PriceCents     int64
	TotalStock     int
	AvailableStock int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ReservedStock is the portion of stock held by active or confirmed reservations.
func (p Product) ReservedStock() int {
	return p.TotalStock - p.AvailableStock
}

func (p Product) Validate() error {
	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case p.PriceCents < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.TotalStock < 0:
		return fmt.Errorf("%w: total stock must not be negative", ErrInvalidProduct)
	case p.AvailableStock < 0 || p.AvailableStock > p.TotalStock:
		return fmt.Errorf("%w: available stock must be within [0, total]", ErrInvalidProduct)
	}
	return nil
}

func NewProduct(name string, priceCents int64, stock int, now time.Time) (Product, error) {
	p := Product{
		ID:             uuid.New(),
		Name:           name,
		PriceCents:     priceCents,
		TotalStock:     stock,
		AvailableStock: stock,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	return p, nil
}
