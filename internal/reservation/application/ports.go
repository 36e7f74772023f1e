package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
)

type Store interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error
	GetReservation(ctx context.Context, id uuid.UUID) (domain.Reservation, error)
	ListReservations(ctx context.Context, f store.ReservationFilter) ([]domain.Reservation, error)
}

// Expiry arms and disarms the hold watchers of a reservation. Both calls run
// only after the atomic unit that created or resolved the reservation has
// committed.
type Expiry interface {
	Arm(ctx context.Context, reservationID uuid.UUID, ttl time.Duration) error
	Disarm(ctx context.Context, reservationID uuid.UUID) error
}
