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
	"github.com/dmehra2102/stock-reservation-system/internal/reservation/application"
	"github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	holdTTL time.Duration
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, holdTTL time.Duration) *Handler {
	return &Handler{
		log:     log,
		service: service,
		holdTTL: holdTTL,
		tracer:  otel.Tracer("reservation-http"),
	}
}

type reservationView struct {
	ID        uuid.UUID     `json:"id"`
	ProductID uuid.UUID     `json:"productId"`
	Quantity  int           `json:"quantity"`
	Status    domain.Status `json:"status"`
	ExpiresAt time.Time     `json:"expiresAt"`
	UserID    *uuid.UUID    `json:"userId,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func view(r domain.Reservation) reservationView {
	return reservationView{
		ID:        r.ID,
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt,
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/cancel", h.cancel)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateReservation")
	defer span.End()

	req, err := api.DecodeHold(r)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	res, err := h.service.Create(ctx, application.CreateInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		UserID:    req.UserID,
		TTL:       h.holdTTL,
	})
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusCreated, "Reservation created", map[string]any{
		"reservationId": res.ID,
		"expiresAt":     res.ExpiresAt,
	})
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	res, err := h.service.Confirm(r.Context(), id)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	msg := "Reservation confirmed"
	if res.AlreadyConfirmed {
		msg = "Reservation already confirmed"
	}
	httpx.OK(w, http.StatusOK, msg, map[string]any{
		"reservationId":    res.Reservation.ID,
		"status":           res.Reservation.Status,
		"alreadyConfirmed": res.AlreadyConfirmed,
	})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	res, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	msg := "Reservation cancelled"
	if res.AlreadyCancelled {
		msg = "Reservation already cancelled"
	}
	httpx.OK(w, http.StatusOK, msg, map[string]any{
		"reservationId":    res.Reservation.ID,
		"status":           res.Reservation.Status,
		"alreadyCancelled": res.AlreadyCancelled,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	res, err := h.service.Get(r.Context(), id)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	httpx.OK(w, http.StatusOK, "", view(res))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := api.DecodePage(r)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	f := store.ReservationFilter{Page: page}
	if raw := r.URL.Query().Get("status"); raw != "" {
		if f.Status, err = domain.ParseStatus(raw); err != nil {
			api.ErrorRules.Write(w, r, h.log, httpx.ErrInvalidQuery)
			return
		}
	}
	if raw := r.URL.Query().Get("productId"); raw != "" {
		if f.ProductID, err = uuid.Parse(raw); err != nil {
			api.ErrorRules.Write(w, r, h.log, httpx.ErrInvalidID)
			return
		}
	}

	items, err := h.service.List(r.Context(), f)
	if err != nil {
		api.ErrorRules.Write(w, r, h.log, err)
		return
	}
	out := make([]reservationView, 0, len(items))
	for _, it := range items {
		out = append(out, view(it))
	}
	httpx.OK(w, http.StatusOK, "", out)
}
