package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func NewStore(log *slog.Logger, pool *pgxpool.Pool) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{log: log, pool: pool}
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO products (id, name, price_cents, total_stock, available_stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Name, p.PriceCents, p.TotalStock, p.AvailableStock, p.CreatedAt, p.UpdatedAt)
	return translate(err)
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	return getProduct(ctx, s.pool, id, false)
}

func (s *Store) ListProducts(ctx context.Context, page store.Page) ([]catalog.Product, error) {
	page = page.Normalize()
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetReservation(ctx context.Context, id uuid.UUID) (reservation.Reservation, error) {
	return getReservation(ctx, s.pool, id, false)
}

func (s *Store) ListReservations(ctx context.Context, f store.ReservationFilter) ([]reservation.Reservation, error) {
	page := f.Page.Normalize()
	var status *string
	if f.Status != "" {
		v := string(f.Status)
		status = &v
	}
	var productID *uuid.UUID
	if f.ProductID != uuid.Nil {
		productID = &f.ProductID
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR product_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`, status, productID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []reservation.Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (order.Order, error) {
	return getOrder(ctx, s.pool, id, false)
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]order.Order, error) {
	page := f.Page.Normalize()
	var status *string
	if f.Status != "" {
		v := string(f.Status)
		status = &v
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`, status, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const (
	productColumns     = `id, name, price_cents, total_stock, available_stock, created_at, updated_at`
	reservationColumns = `id, product_id, quantity, status, expires_at, user_id, created_at, updated_at`
	orderColumns       = `id, reservation_id, product_id, product_name, quantity, unit_price_cents, total_cents, status, user_id, payment, created_at, updated_at`
)

func getProduct(ctx context.Context, q querier, id uuid.UUID, lock bool) (catalog.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	p, err := scanProduct(q.QueryRow(ctx, sql, id))
	return p, translate(err)
}

func getReservation(ctx context.Context, q querier, id uuid.UUID, lock bool) (reservation.Reservation, error) {
	sql := `SELECT ` + reservationColumns + ` FROM reservations WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	r, err := scanReservation(q.QueryRow(ctx, sql, id))
	return r, translate(err)
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, lock bool) (order.Order, error) {
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, id))
	return o, translate(err)
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.PriceCents, &p.TotalStock, &p.AvailableStock, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanReservation(row pgx.Row) (reservation.Reservation, error) {
	var (
		r      reservation.Reservation
		status string
		userID pgtype.UUID
	)
	if err := row.Scan(&r.ID, &r.ProductID, &r.Quantity, &status, &r.ExpiresAt, &userID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return reservation.Reservation{}, err
	}
	r.Status = reservation.Status(status)
	r.UserID = fromPgUUID(userID)
	return r, nil
}

func scanOrder(row pgx.Row) (order.Order, error) {
	var (
		o       order.Order
		status  string
		userID  pgtype.UUID
		payment []byte
	)
	if err := row.Scan(&o.ID, &o.ReservationID, &o.ProductID, &o.ProductName, &o.Quantity, &o.UnitPriceCents,
		&o.TotalCents, &status, &userID, &payment, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return order.Order{}, err
	}
	o.Status = order.OrderStatus(status)
	o.UserID = fromPgUUID(userID)
	if len(payment) > 0 {
		var p order.Payment
		if err := json.Unmarshal(payment, &p); err != nil {
			return order.Order{}, fmt.Errorf("decode payment of order %s: %w", o.ID, err)
		}
		o.Payment = &p
	}
	return o, nil
}

func fromPgUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

// translate maps driver errors onto the store's sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, store.ErrConflict)
	}
	return err
}
