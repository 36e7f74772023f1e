package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	orderapp "github.com/dmehra2102/stock-reservation-system/internal/order/application"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/payment/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
)

type OrderConfirmer interface {
	ConfirmOrder(ctx context.Context, id uuid.UUID, payment *order.Payment) (orderapp.ConfirmResult, error)
}

type Service struct {
	log    *slog.Logger
	orders OrderConfirmer
}

func NewService(log *slog.Logger, orders OrderConfirmer) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log, orders: orders}
}

// ApplyProcessed confirms the paid order. Outcomes that a redelivery cannot
// change (unknown order, order already resolved) are logged and swallowed;
// only infrastructure errors are returned.
func (s *Service) ApplyProcessed(ctx context.Context, ev domain.PaymentProcessed) error {
	id, err := uuid.Parse(ev.OrderID)
	if err != nil {
		return fmt.Errorf("%w: order id %q", domain.ErrMalformedEvent, ev.OrderID)
	}
	paidAt := ev.PaidAt
	payment := &order.Payment{
		Provider:  ev.Provider,
		PaymentID: ev.PaymentID,
		Method:    ev.Method,
		PaidAt:    &paidAt,
	}

	res, err := s.orders.ConfirmOrder(ctx, id, payment)
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrNotConfirmable),
		errors.Is(err, order.ErrNotPendingPayment),
		errors.Is(err, reservation.ErrExpired),
		errors.Is(err, reservation.ErrNotConfirmable):
		s.log.WarnContext(ctx, "payment for unconfirmable order", "order_id", id, "payment_id", ev.PaymentID, "err", err)
		return nil
	case err != nil:
		return err
	}
	if res.AlreadyConfirmed {
		s.log.InfoContext(ctx, "payment for already confirmed order", "order_id", id, "payment_id", ev.PaymentID)
	}
	return nil
}
