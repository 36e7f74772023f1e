package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
)

// Notifier is the fast channel: an ephemeral key per reservation that
// expires on its own after the hold duration.
type Notifier interface {
	Arm(ctx context.Context, reservationID uuid.UUID, ttl time.Duration) error
	Disarm(ctx context.Context, reservationID uuid.UUID) error
	Armed(ctx context.Context, reservationID uuid.UUID) (bool, error)
}

// Queue is the delayed channel. Tasks are delivered at least once: a claimed
// task belongs to exactly one caller, but a caller may reschedule it.
type Queue interface {
	Schedule(ctx context.Context, task domain.Task, delay time.Duration) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Task, error)
}

// Expirer applies the EXPIRED transition if the reservation is still ACTIVE.
type Expirer interface {
	Expire(ctx context.Context, reservationID uuid.UUID) (bool, error)
}

// Handler reconciles one fired task.
type Handler interface {
	Reconcile(ctx context.Context, reservationID uuid.UUID) (domain.Outcome, error)
}
