// Package store defines the atomic commit boundary shared by the stock ledger,
// the reservation state machine and the order state machine.
//
// Every multi-entity change runs inside Store.Atomically: either all writes
// made through the Tx commit together or none of them do.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports a uniqueness violation, such as a second order for
	// the same reservation.
	ErrConflict = errors.New("store: conflict")
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page into the supported window.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type ReservationFilter struct {
	Status    reservation.Status
	ProductID uuid.UUID
	Page
}

type OrderFilter struct {
	Status order.OrderStatus
	Page
}

// Tx is the set of writes an atomic unit may perform. Lock* reads take a row
// lock held until the unit ends, so transitions on one entity are mutually
// exclusive.
type Tx interface {
	// DecrementAvailable lowers available stock by qty only when at least qty
	// units are available. It reports false when the product is missing or
	// short.
	DecrementAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	IncrementAvailable(ctx context.Context, productID uuid.UUID, qty int) error
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)

	InsertReservation(ctx context.Context, r reservation.Reservation) error
	LockReservation(ctx context.Context, id uuid.UUID) (reservation.Reservation, error)
	SetReservationStatus(ctx context.Context, id uuid.UUID, status reservation.Status, at time.Time) error

	InsertOrder(ctx context.Context, o order.Order) error
	LockOrder(ctx context.Context, id uuid.UUID) (order.Order, error)
	// LockOrderByReservation locks the order linked to reservationID, or
	// returns ErrNotFound when there is none. A unit that touches both rows
	// locks the order before the reservation.
	LockOrderByReservation(ctx context.Context, reservationID uuid.UUID) (order.Order, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, status order.OrderStatus, at time.Time) error
	SetOrderPayment(ctx context.Context, id uuid.UUID, p order.Payment) error
	// MirrorPendingOrder moves the order linked to reservationID to status if,
	// and only if, it is still PENDING_PAYMENT. It returns the id of the order
	// it moved.
	MirrorPendingOrder(ctx context.Context, reservationID uuid.UUID, status order.OrderStatus, at time.Time) (uuid.UUID, bool, error)

	AppendOutbox(ctx context.Context, ev outbox.Event) error
}

type Store interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateProduct(ctx context.Context, p catalog.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	ListProducts(ctx context.Context, page Page) ([]catalog.Product, error)

	GetReservation(ctx context.Context, id uuid.UUID) (reservation.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]reservation.Reservation, error)

	GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]order.Order, error)

	Ping(ctx context.Context) error
}
