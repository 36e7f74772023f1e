package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
)

type OrderStatus string

const (
	StatusPendingPayment OrderStatus = "PENDING_PAYMENT"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusCancelled      OrderStatus = "CANCELLED"
	StatusExpired        OrderStatus = "EXPIRED"
	StatusFailed         OrderStatus = "FAILED"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrNotConfirmable    = errors.New("order is not confirmable")
	ErrNotPendingPayment = errors.New("order is not pending payment")
	ErrNotCancellable    = errors.New("order is not cancellable")
)

// Payment is opaque to the lifecycle engine; it is stored and never interpreted.
type Payment struct {
	Provider  string     `json:"provider,omitempty"`
	PaymentID string     `json:"paymentId,omitempty"`
	Method    string     `json:"method,omitempty"`
	PaidAt    *time.Time `json:"paidAt,omitempty"`
}

type Order struct {
	ID             uuid.UUID
	ReservationID  uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	Quantity       int
	UnitPriceCents int64
	TotalCents     int64
	Status         OrderStatus
	UserID         *uuid.UUID
	Payment        *Payment
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrder snapshots the product's name and price so later catalog changes
// never alter an existing order.
func NewOrder(reservationID uuid.UUID, p catalog.Product, qty int, userID *uuid.UUID, now time.Time) Order {
	return Order{
		ID:             uuid.New(),
		ReservationID:  reservationID,
		ProductID:      p.ID,
		ProductName:    p.Name,
		Quantity:       qty,
		UnitPriceCents: p.PriceCents,
		TotalCents:     p.PriceCents * int64(qty),
		Status:         StatusPendingPayment,
		UserID:         userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (o Order) DecideConfirm() (reservation.Decision, error) {
	switch o.Status {
	case StatusConfirmed:
		return reservation.Idempotent, nil
	case StatusCancelled, StatusExpired, StatusFailed:
		return 0, ErrNotConfirmable
	case StatusPendingPayment:
		return reservation.Apply, nil
	}
	return 0, ErrNotPendingPayment
}

func (o Order) CheckCancel() error {
	if o.Status != StatusPendingPayment {
		return ErrNotCancellable
	}
	return nil
}

// MirrorOf maps a terminal reservation status onto the status its pending
// order must take. ACTIVE has no mirror.
func MirrorOf(s reservation.Status) (OrderStatus, bool) {
	switch s {
	case reservation.StatusConfirmed:
		return StatusConfirmed, true
	case reservation.StatusCancelled:
		return StatusCancelled, true
	case reservation.StatusExpired:
		return StatusExpired, true
	}
	return "", false
}
