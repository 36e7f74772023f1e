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

	"github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/application"
	resdomain "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
)

const aggregateType = "order"

type CreateInput struct {
	ProductID uuid.UUID
	Quantity  int
	UserID    *uuid.UUID
}

type CreateResult struct {
	Order     domain.Order
	ExpiresAt time.Time
}

type ConfirmResult struct {
	Order            domain.Order
	AlreadyConfirmed bool
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	log          *slog.Logger
	store        OrderStore
	reservations *reservation.Service
	holdTTL      time.Duration
	now          func() time.Time
	tracer       trace.Tracer
}

func NewService(log *slog.Logger, st OrderStore, reservations *reservation.Service, holdTTL time.Duration, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:          log,
		store:        st,
		reservations: reservations,
		holdTTL:      holdTTL,
		now:          func() time.Time { return time.Now().UTC() },
		tracer:       otel.Tracer("order-service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateOrder holds stock through a new reservation and records a
// PENDING_PAYMENT order for it, all in one atomic unit.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (CreateResult, error) {
	ctx, span := s.tracer.Start(ctx, "Order.Create")
	defer span.End()

	var res CreateResult
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		p, err := tx.GetProduct(ctx, in.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}

		r, err := s.reservations.CreateTx(ctx, tx, reservation.CreateInput{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UserID:    in.UserID,
			TTL:       s.holdTTL,
		})
		if err != nil {
			return err
		}

		o := domain.NewOrder(r.ID, p, in.Quantity, in.UserID, s.now())
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		ev, err := outbox.NewEvent(ctx, aggregateType, o.ID.String(), domain.EventCreated, domain.OrderCreated{
			OrderID:       o.ID,
			ReservationID: o.ReservationID,
			ProductID:     o.ProductID,
			Quantity:      o.Quantity,
			TotalCents:    o.TotalCents,
		})
		if err != nil {
			return err
		}
		if err := tx.AppendOutbox(ctx, ev); err != nil {
			return err
		}

		res = CreateResult{Order: o, ExpiresAt: r.ExpiresAt}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}
	span.SetAttributes(attribute.String("order.id", res.Order.ID.String()))

	s.reservations.Arm(ctx, res.Order.ReservationID, s.holdTTL)
	s.log.InfoContext(ctx, "order created", "order_id", res.Order.ID, "reservation_id", res.Order.ReservationID)
	return res, nil
}

// ConfirmOrder confirms the order and its reservation together. payment may be
// nil; when set it is stored on the order as is.
func (s *Service) ConfirmOrder(ctx context.Context, id uuid.UUID, payment *domain.Payment) (ConfirmResult, error) {
	ctx, span := s.tracer.Start(ctx, "Order.Confirm", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	var (
		res     ConfirmResult
		outcome reservation.ConfirmOutcome
	)
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := s.lock(ctx, tx, id)
		if err != nil {
			return err
		}
		decision, err := o.DecideConfirm()
		if err != nil {
			return err
		}
		if decision == resdomain.Idempotent {
			res = ConfirmResult{Order: o, AlreadyConfirmed: true}
			return nil
		}

		r, out, err := s.reservations.ConfirmTx(ctx, tx, o.ReservationID)
		if err != nil {
			return err
		}
		outcome = out
		now := s.now()
		if outcome == reservation.LazilyExpired {
			if o, err = s.settle(ctx, tx, o.ID, domain.StatusExpired, now); err != nil {
				return err
			}
			res = ConfirmResult{Order: o}
			return nil
		}
		if r.Status != resdomain.StatusConfirmed {
			return fmt.Errorf("reservation %s is %s after confirm", r.ID, r.Status)
		}

		if o, err = s.settle(ctx, tx, o.ID, domain.StatusConfirmed, now); err != nil {
			return err
		}
		if payment != nil {
			if err := tx.SetOrderPayment(ctx, o.ID, *payment); err != nil {
				return err
			}
			o.Payment = payment
		}
		res = ConfirmResult{Order: o}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	if res.AlreadyConfirmed {
		return res, nil
	}

	s.reservations.Disarm(ctx, res.Order.ReservationID)
	if outcome == reservation.LazilyExpired {
		return res, resdomain.ErrExpired
	}
	s.log.InfoContext(ctx, "order confirmed", "order_id", id)
	return res, nil
}

func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "Order.Cancel", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	var o domain.Order
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if o, err = s.lock(ctx, tx, id); err != nil {
			return err
		}
		if err := o.CheckCancel(); err != nil {
			return err
		}
		if _, err := s.reservations.CancelTx(ctx, tx, o.ReservationID); err != nil {
			return err
		}
		o, err = s.settle(ctx, tx, o.ID, domain.StatusCancelled, s.now())
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.reservations.Disarm(ctx, o.ReservationID)
	s.log.InfoContext(ctx, "order cancelled", "order_id", id)
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, err
}

func (s *Service) ListOrders(ctx context.Context, f store.OrderFilter) ([]domain.Order, error) {
	return s.store.ListOrders(ctx, f)
}

func (s *Service) lock(ctx context.Context, tx store.Tx, id uuid.UUID) (domain.Order, error) {
	o, err := tx.LockOrder(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Order{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

// settle re-reads the order after its reservation resolved. Resolving the
// reservation normally mirrors the status onto the order already; an order
// left behind is moved here.
func (s *Service) settle(ctx context.Context, tx store.Tx, id uuid.UUID, status domain.OrderStatus, now time.Time) (domain.Order, error) {
	o, err := s.lock(ctx, tx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status == status {
		return o, nil
	}
	if err := tx.SetOrderStatus(ctx, o.ID, status, now); err != nil {
		return domain.Order{}, fmt.Errorf("set order status: %w", err)
	}
	o.Status = status
	o.UpdatedAt = now
	return o, s.appendResolved(ctx, tx, o, domain.ResolvedEvent(status))
}

func (s *Service) appendResolved(ctx context.Context, tx store.Tx, o domain.Order, eventType string) error {
	ev, err := outbox.NewEvent(ctx, aggregateType, o.ID.String(), eventType, domain.OrderResolved{
		OrderID:       o.ID,
		ReservationID: o.ReservationID,
		Status:        o.Status,
	})
	if err != nil {
		return err
	}
	return tx.AppendOutbox(ctx, ev)
}
