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

	inventory "github.com/dmehra2102/stock-reservation-system/internal/inventory/application"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
)

const (
	aggregateType      = "reservation"
	orderAggregateType = "order"
)

type CreateInput struct {
	ProductID uuid.UUID
	Quantity  int
	UserID    *uuid.UUID
	TTL       time.Duration
}

type ConfirmResult struct {
	Reservation      domain.Reservation
	AlreadyConfirmed bool
}

type CancelResult struct {
	Reservation      domain.Reservation
	AlreadyCancelled bool
}

// ConfirmOutcome tells a composing caller what ConfirmTx did inside its unit.
type ConfirmOutcome int

const (
	Confirmed ConfirmOutcome = iota
	AlreadyConfirmed
	// LazilyExpired means the hold had lapsed: the reservation was expired in
	// the unit, which must still commit before ErrExpired is reported.
	LazilyExpired
)

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	log    *slog.Logger
	store  Store
	ledger *inventory.Ledger
	expiry Expiry
	now    func() time.Time
	tracer trace.Tracer
}

func NewService(log *slog.Logger, st Store, ledger *inventory.Ledger, expiry Expiry, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:    log,
		store:  st,
		ledger: ledger,
		expiry: expiry,
		now:    func() time.Time { return time.Now().UTC() },
		tracer: otel.Tracer("reservation-service"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Reservation, error) {
	ctx, span := s.tracer.Start(ctx, "Reservation.Create")
	defer span.End()

	var r domain.Reservation
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		r, err = s.CreateTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	span.SetAttributes(attribute.String("reservation.id", r.ID.String()))

	s.Arm(ctx, r.ID, in.TTL)
	return r, nil
}

// CreateTx holds stock and inserts an ACTIVE reservation inside tx. The caller
// arms expiry once tx has committed.
func (s *Service) CreateTx(ctx context.Context, tx store.Tx, in CreateInput) (domain.Reservation, error) {
	r, err := domain.New(in.ProductID, in.Quantity, in.UserID, in.TTL, s.now())
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := s.ledger.Reserve(ctx, tx, in.ProductID, in.Quantity); err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.InsertReservation(ctx, r); err != nil {
		return domain.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}
	ev, err := outbox.NewEvent(ctx, aggregateType, r.ID.String(), domain.EventCreated, domain.ReservationCreated{
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		Quantity:      r.Quantity,
		ExpiresAt:     r.ExpiresAt,
		UserID:        r.UserID,
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.AppendOutbox(ctx, ev); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (ConfirmResult, error) {
	ctx, span := s.tracer.Start(ctx, "Reservation.Confirm", trace.WithAttributes(attribute.String("reservation.id", id.String())))
	defer span.End()

	var (
		r       domain.Reservation
		outcome ConfirmOutcome
	)
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		r, outcome, err = s.ConfirmTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	if outcome != AlreadyConfirmed {
		s.Disarm(ctx, id)
	}
	if outcome == LazilyExpired {
		return ConfirmResult{Reservation: r}, domain.ErrExpired
	}
	return ConfirmResult{Reservation: r, AlreadyConfirmed: outcome == AlreadyConfirmed}, nil
}

func (s *Service) ConfirmTx(ctx context.Context, tx store.Tx, id uuid.UUID) (domain.Reservation, ConfirmOutcome, error) {
	r, err := s.lock(ctx, tx, id)
	if err != nil {
		return domain.Reservation{}, 0, err
	}

	now := s.now()
	decision, err := r.DecideConfirm(now)
	if err != nil {
		return r, 0, err
	}
	switch decision {
	case domain.Idempotent:
		return r, AlreadyConfirmed, nil
	case domain.Expire:
		r, err = s.expireTx(ctx, tx, r, now)
		if err != nil {
			return domain.Reservation{}, 0, err
		}
		s.log.InfoContext(ctx, "reservation expired on confirm", "reservation_id", id)
		return r, LazilyExpired, nil
	}

	r, err = s.resolveTx(ctx, tx, r, domain.StatusConfirmed, domain.EventConfirmed, now)
	if err != nil {
		return domain.Reservation{}, 0, err
	}
	return r, Confirmed, nil
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (CancelResult, error) {
	ctx, span := s.tracer.Start(ctx, "Reservation.Cancel", trace.WithAttributes(attribute.String("reservation.id", id.String())))
	defer span.End()

	var res CancelResult
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		res, err = s.CancelTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return CancelResult{}, err
	}
	if !res.AlreadyCancelled {
		s.Disarm(ctx, id)
	}
	return res, nil
}

func (s *Service) CancelTx(ctx context.Context, tx store.Tx, id uuid.UUID) (CancelResult, error) {
	r, err := s.lock(ctx, tx, id)
	if err != nil {
		return CancelResult{}, err
	}
	decision, err := r.DecideCancel()
	if err != nil {
		return CancelResult{}, err
	}
	if decision == domain.Idempotent {
		return CancelResult{Reservation: r, AlreadyCancelled: true}, nil
	}

	now := s.now()
	if err := s.ledger.Release(ctx, tx, r.ProductID, r.Quantity); err != nil {
		return CancelResult{}, err
	}
	r, err = s.resolveTx(ctx, tx, r, domain.StatusCancelled, domain.EventCancelled, now)
	if err != nil {
		return CancelResult{}, err
	}
	return CancelResult{Reservation: r}, nil
}

// Expire is the reconciliation step of the expiry coordinator. It re-reads
// the reservation under a row lock and acts only while it is still ACTIVE;
// anything else was resolved already and is left untouched.
func (s *Service) Expire(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "Reservation.Expire", trace.WithAttributes(attribute.String("reservation.id", id.String())))
	defer span.End()

	var expired bool
	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		r, err := s.lock(ctx, tx, id)
		if errors.Is(err, domain.ErrNotFound) {
			s.log.WarnContext(ctx, "expiry fired for unknown reservation", "reservation_id", id)
			return nil
		}
		if err != nil {
			return err
		}
		if !r.Expirable() {
			return nil
		}
		if _, err := s.expireTx(ctx, tx, r, s.now()); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return expired, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Reservation, error) {
	r, err := s.store.GetReservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return r, err
}

func (s *Service) List(ctx context.Context, f store.ReservationFilter) ([]domain.Reservation, error) {
	return s.store.ListReservations(ctx, f)
}

// Arm starts both expiry watchers. A failure is logged but not returned: the
// reservation is already committed, and confirm still detects lapsed holds.
func (s *Service) Arm(ctx context.Context, id uuid.UUID, ttl time.Duration) {
	if s.expiry == nil {
		return
	}
	if err := s.expiry.Arm(ctx, id, ttl); err != nil {
		s.log.ErrorContext(ctx, "arm expiry failed", "reservation_id", id, "err", err)
	}
}

func (s *Service) Disarm(ctx context.Context, id uuid.UUID) {
	if s.expiry == nil {
		return
	}
	if err := s.expiry.Disarm(ctx, id); err != nil {
		s.log.WarnContext(ctx, "disarm expiry failed", "reservation_id", id, "err", err)
	}
}

// lock takes the linked order's row lock before the reservation's. Every
// unit touching both locks them in that order.
func (s *Service) lock(ctx context.Context, tx store.Tx, id uuid.UUID) (domain.Reservation, error) {
	if _, err := tx.LockOrderByReservation(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Reservation{}, fmt.Errorf("lock linked order: %w", err)
	}
	r, err := tx.LockReservation(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("lock reservation: %w", err)
	}
	return r, nil
}

func (s *Service) expireTx(ctx context.Context, tx store.Tx, r domain.Reservation, now time.Time) (domain.Reservation, error) {
	if err := s.ledger.Release(ctx, tx, r.ProductID, r.Quantity); err != nil {
		return domain.Reservation{}, err
	}
	return s.resolveTx(ctx, tx, r, domain.StatusExpired, domain.EventExpired, now)
}

// resolveTx writes a terminal status, records the event and mirrors the
// status onto a pending order, recording the order's event when it moved.
func (s *Service) resolveTx(ctx context.Context, tx store.Tx, r domain.Reservation, status domain.Status, eventType string, now time.Time) (domain.Reservation, error) {
	if err := tx.SetReservationStatus(ctx, r.ID, status, now); err != nil {
		return domain.Reservation{}, fmt.Errorf("set reservation status: %w", err)
	}
	r.Status = status
	r.UpdatedAt = now

	ev, err := outbox.NewEvent(ctx, aggregateType, r.ID.String(), eventType, domain.ReservationResolved{
		ReservationID: r.ID,
		ProductID:     r.ProductID,
		Quantity:      r.Quantity,
		Status:        status,
		At:            now,
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.AppendOutbox(ctx, ev); err != nil {
		return domain.Reservation{}, err
	}

	mirror, ok := order.MirrorOf(status)
	if !ok {
		return r, nil
	}
	orderID, moved, err := tx.MirrorPendingOrder(ctx, r.ID, mirror, now)
	if err != nil || !moved {
		return r, err
	}
	oev, err := outbox.NewEvent(ctx, orderAggregateType, orderID.String(), order.ResolvedEvent(mirror), order.OrderResolved{
		OrderID:       orderID,
		ReservationID: r.ID,
		Status:        mirror,
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	if err := tx.AppendOutbox(ctx, oev); err != nil {
		return domain.Reservation{}, err
	}
	return r, nil
}
