package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
)

type Service struct {
	log   *slog.Logger
	store ProductStore
}

func NewService(log *slog.Logger, st ProductStore) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, store: st}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, err
}

func (s *Service) List(ctx context.Context, page store.Page) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, page)
}

type seedProduct struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Stock      int    `json:"stock"`
}

// Seed loads a JSON array of products. Products that already exist are
// skipped so the same file can be applied on every start.
func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	var items []seedProduct
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	created := 0
	now := time.Now().UTC()
	for _, it := range items {
		p, err := domain.NewProduct(it.Name, it.PriceCents, it.Stock, now)
		if err != nil {
			return created, err
		}
		if it.ID != "" {
			if p.ID, err = uuid.Parse(it.ID); err != nil {
				return created, fmt.Errorf("seed product %q: %w", it.Name, err)
			}
		}
		err = s.store.CreateProduct(ctx, p)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed product %q: %w", it.Name, err)
		}
		created++
	}
	s.log.InfoContext(ctx, "products seeded", "created", created, "total", len(items))
	return created, nil
}
