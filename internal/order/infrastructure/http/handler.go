package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-reservation-system/internal/api"
	"github.com/dmehra2102/stock-reservation-system/internal/order/application"
	"github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

// orderView leaves out payment metadata.
type orderView struct {
	ID             uuid.UUID          `json:"id"`
	ReservationID  uuid.UUID          `json:"reservationId"`
	ProductID      uuid.UUID          `json:"productId"`
	ProductName    string             `json:"productName"`
	Quantity       int                `json:"quantity"`
	UnitPriceCents int64              `json:"unitPrice"`
	TotalCents     int64              `json:"totalAmount"`
	Status         domain.OrderStatus `json:"status"`
	UserID         *uuid.UUID         `json:"userId,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func view(o domain.Order) orderView {
	return orderView{
		ID:             o.ID,
		ReservationID:  o.ReservationID,
		ProductID:      o.ProductID,
		ProductName:    o.ProductName,
		Quantity:       o.Quantity,
		UnitPriceCents: o.UnitPriceCents,
		TotalCents:     o.TotalCents,
		Status:         o.Status,
		UserID:         o.UserID,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/order", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/confirm", h.confirmOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
	})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	req, err := api.DecodeHold(r)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	res, err := h.service.CreateOrder(ctx, application.CreateInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UserID:    req.UserID,
	})
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Order created", map[string]any{
		"orderId":       res.Order.ID,
		"reservationId": res.Order.ReservationID,
		"expiresAt":     res.ExpiresAt,
		"status":        res.Order.Status,
	})
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	res, err := h.service.ConfirmOrder(r.Context(), id, nil)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	msg := "Order confirmed successfully"
	if res.AlreadyConfirmed {
		msg = "Order already confirmed"
	}
	httpx.OK(w, http.StatusOK, msg, map[string]any{
		"orderId":          res.Order.ID,
		"status":           res.Order.Status,
		"alreadyConfirmed": res.AlreadyConfirmed,
	})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	o, err := h.service.CancelOrder(r.Context(), id)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, "Order cancelled", map[string]any{
		"orderId": o.ID,
		"status":  o.Status,
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", view(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, err := api.DecodePage(r)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	f := store.OrderFilter{Page: page}
	if raw := r.URL.Query().Get("status"); raw != "" {
		f.Status = domain.OrderStatus(raw)
	}

	items, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	out := make([]orderView, 0, len(items))
	for _, it := range items {
		out = append(out, view(it))
	}
	httpx.OK(w, http.StatusOK, "", out)
}
