package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
)

type pgTx struct {
	q querier
}

var _ store.Tx = (*pgTx)(nil)

// DecrementAvailable is a single compare-and-decrement; concurrent callers
// serialize on the product row and the losing one matches zero rows.
func (t *pgTx) DecrementAvailable(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	ct, err := t.q.Exec(ctx, `
		UPDATE products
		SET available_stock = available_stock - $2, updated_at = now()
		WHERE id = $1 AND available_stock >= $2`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

func (t *pgTx) IncrementAvailable(ctx context.Context, productID uuid.UUID, qty int) error {
	ct, err := t.q.Exec(ctx, `
		UPDATE products
		SET available_stock = available_stock + $2, updated_at = now()
		WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("increment stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	return getProduct(ctx, t.q, id, false)
}

func (t *pgTx) InsertReservation(ctx context.Context, r reservation.Reservation) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO reservations (id, product_id, quantity, status, expires_at, user_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.ID, r.ProductID, r.Quantity, string(r.Status), r.ExpiresAt, r.UserID, r.CreatedAt, r.UpdatedAt)
	return translate(err)
}

func (t *pgTx) LockReservation(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return getReservation(ctx, t.q, id, true)
}

func (t *pgTx) SetReservationStatus(ctx context.Context, id uuid.UUID, status reservation.Status, at time.Time) error {
	ct, err := t.q.Exec(ctx, `UPDATE reservations SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o order.Order) error {
	var payment []byte
	if o.Payment != nil {
		var err error
		if payment, err = json.Marshal(o.Payment); err != nil {
			return fmt.Errorf("encode payment: %w", err)
		}
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders (id, reservation_id, product_id, product_name, quantity, unit_price_cents, total_cents,
		                    status, user_id, payment, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.ReservationID, o.ProductID, o.ProductName, o.Quantity, o.UnitPriceCents, o.TotalCents,
		string(o.Status), o.UserID, payment, o.CreatedAt, o.UpdatedAt)
	return translate(err)
}

func (t *pgTx) LockOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return getOrder(ctx, t.q, id, true)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id uuid.UUID, status order.OrderStatus, at time.Time) error {
	ct, err := t.q.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, id, string(status), at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) SetOrderPayment(ctx context.Context, id uuid.UUID, p order.Payment) error {
	payment, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payment: %w", err)
	}
	ct, err := t.q.Exec(ctx, `UPDATE orders SET payment=$2 WHERE id=$1`, id, payment)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) LockOrderByReservation(ctx context.Context, reservationID uuid.UUID) (order.Order, error) {
	o, err := scanOrder(t.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE reservation_id=$1 FOR UPDATE`, reservationID))
	return o, translate(err)
}

func (t *pgTx) MirrorPendingOrder(ctx context.Context, reservationID uuid.UUID, status order.OrderStatus, at time.Time) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := t.q.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=$3
		WHERE reservation_id=$1 AND status=$4
		RETURNING id`,
		reservationID, string(status), at, string(order.StatusPendingPayment)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("mirror order status: %w", err)
	}
	return id, true, nil
}

func (t *pgTx) AppendOutbox(ctx context.Context, ev outbox.Event) error {
	headers := ev.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	_, err := t.q.Exec(ctx, `
		INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		ev.AggregateType, ev.AggregateID, ev.Type, ev.Payload, headers, ev.Traceparent)
	if err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}
