package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/api"
	"github.com/dmehra2102/stock-reservation-system/internal/catalog/application"
	"github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{log: log, service: service}
}

type productView struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	PriceCents     int64     `json:"price"`
	TotalStock     int       `json:"totalStock"`
	AvailableStock int       `json:"availableStock"`
	ReservedStock  int       `json:"reservedStock"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func view(p domain.Product) productView {
	return productView{
		ID:             p.ID,
		Name:           p.Name,
		PriceCents:     p.PriceCents,
		TotalStock:     p.TotalStock,
		AvailableStock: p.AvailableStock,
		ReservedStock:  p.ReservedStock(),
		UpdatedAt:      p.UpdatedAt,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := api.DecodePage(r)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	items, err := h.service.List(r.Context(), page)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	out := make([]productView, 0, len(items))
	for _, p := range items {
		out = append(out, view(p))
	}
	httpx.OK(w, http.StatusOK, "", out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", view(p))
}
