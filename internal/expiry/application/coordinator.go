package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
)

// Coordinator arms and disarms the two expiry channels of a reservation.
type Coordinator struct {
	log      *slog.Logger
	notifier Notifier
	queue    Queue
}

func NewCoordinator(log *slog.Logger, notifier Notifier, queue Queue) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{log: log, notifier: notifier, queue: queue}
}

// Arm sets the notifier key and schedules the reconciliation task, both with
// the same delay. One channel failing does not stop the other.
func (c *Coordinator) Arm(ctx context.Context, reservationID uuid.UUID, ttl time.Duration) error {
	var errs []error
	if err := c.notifier.Arm(ctx, reservationID, ttl); err != nil {
		errs = append(errs, fmt.Errorf("arm notifier: %w", err))
	}
	if err := c.queue.Schedule(ctx, domain.Task{ReservationID: reservationID, Attempt: 1}, ttl); err != nil {
		errs = append(errs, fmt.Errorf("schedule reconciliation: %w", err))
	}
	if len(errs) == 0 {
		c.log.DebugContext(ctx, "expiry armed", "reservation_id", reservationID, "ttl", ttl)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) Disarm(ctx context.Context, reservationID uuid.UUID) error {
	return c.notifier.Disarm(ctx, reservationID)
}

// Reconciler is the Handler run when a reconciliation task fires.
type Reconciler struct {
	log      *slog.Logger
	notifier Notifier
	expirer  Expirer
	tracer   trace.Tracer
}

func NewReconciler(log *slog.Logger, notifier Notifier, expirer Expirer) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{log: log, notifier: notifier, expirer: expirer, tracer: otel.Tracer("expiry-reconciler")}
}

// Reconcile treats a present notifier key as "not yet due" and does nothing,
// without rescheduling. Because the key and the task share one delay, a task
// that fires a moment before the key lapses leaves the reservation ACTIVE
// until a confirm attempt expires it lazily.
//
// With the key gone the notifier says nothing reliable (lapsed and disarmed
// look the same), so the reservation's stored status decides.
func (r *Reconciler) Reconcile(ctx context.Context, reservationID uuid.UUID) (domain.Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "Expiry.Reconcile", trace.WithAttributes(attribute.String("reservation.id", reservationID.String())))
	defer span.End()

	armed, err := r.notifier.Armed(ctx, reservationID)
	if err != nil {
		return "", fmt.Errorf("check notifier: %w", err)
	}
	if armed {
		r.log.InfoContext(ctx, "reservation not yet due", "reservation_id", reservationID)
		return domain.OutcomeNotDue, nil
	}

	expired, err := r.expirer.Expire(ctx, reservationID)
	if err != nil {
		return "", err
	}
	if !expired {
		return domain.OutcomeNoop, nil
	}
	r.log.InfoContext(ctx, "reservation expired", "reservation_id", reservationID)
	return domain.OutcomeExpired, nil
}
