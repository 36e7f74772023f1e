// Package memory is a process-local implementation of store.Store. Atomic
// units are serialized under one mutex and applied by swapping in a modified
// copy of the state, so a failing unit leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
)

var errStockOverflow = errors.New("available stock would exceed total stock")

type state struct {
	products     map[uuid.UUID]catalog.Product
	reservations map[uuid.UUID]reservation.Reservation
	orders       map[uuid.UUID]order.Order
	orderByRes   map[uuid.UUID]uuid.UUID
	events       []outbox.Event
	nextEventID  int64
}

func newState() *state {
	return &state{
		products:     map[uuid.UUID]catalog.Product{},
		reservations: map[uuid.UUID]reservation.Reservation{},
		orders:       map[uuid.UUID]order.Order{},
		orderByRes:   map[uuid.UUID]uuid.UUID{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:     make(map[uuid.UUID]catalog.Product, len(s.products)),
		reservations: make(map[uuid.UUID]reservation.Reservation, len(s.reservations)),
		orders:       make(map[uuid.UUID]order.Order, len(s.orders)),
		orderByRes:   make(map[uuid.UUID]uuid.UUID, len(s.orderByRes)),
		events:       slices.Clone(s.events),
		nextEventID:  s.nextEventID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderByRes {
		c.orderByRes[k] = v
	}
	return c
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type Store struct {
	mu  sync.RWMutex
	st  *state
	now func() time.Time
}

func New(opts ...Option) *Store {
	s := &Store{st: newState(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

var (
	_ store.Store  = (*Store)(nil)
	_ outbox.Store = (*Store)(nil)
)

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) CreateProduct(_ context.Context, p catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.products[p.ID]; ok {
		return fmt.Errorf("product %s: %w", p.ID, store.ErrConflict)
	}
	s.st.products[p.ID] = p
	return nil
}

func (s *Store) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.products[id]
	if !ok {
		return catalog.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProducts(_ context.Context, page store.Page) ([]catalog.Product, error) {
	s.mu.RLock()
	out := make([]catalog.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b catalog.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(out, page), nil
}

func (s *Store) GetReservation(_ context.Context, id uuid.UUID) (reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.st.reservations[id]
	if !ok {
		return reservation.Reservation{}, store.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListReservations(_ context.Context, f store.ReservationFilter) ([]reservation.Reservation, error) {
	s.mu.RLock()
	out := make([]reservation.Reservation, 0, len(s.st.reservations))
	for _, r := range s.st.reservations {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.ProductID != uuid.Nil && r.ProductID != f.ProductID {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b reservation.Reservation) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(out, f.Page), nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.st.orders[id]
	if !ok {
		return order.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, f store.OrderFilter) ([]order.Order, error) {
	s.mu.RLock()
	out := make([]order.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return paginate(out, f.Page), nil
}

// Events returns a copy of every outbox event written so far.
func (s *Store) Events() []outbox.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.st.events)
}

func (s *Store) LockBatch(_ context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var batch []outbox.Event
	for i := range s.st.events {
		if len(batch) == batchSize {
			break
		}
		ev := &s.st.events[i]
		leaseLapsed := ev.Status == outbox.StatusInProgress && ev.LeaseUntil.Before(now)
		if ev.Status != outbox.StatusPending && !leaseLapsed {
			continue
		}
		ev.Status = outbox.StatusInProgress
		ev.RelayID = relayID
		ev.LeaseUntil = now.Add(lease)
		batch = append(batch, *ev)
	}
	return batch, nil
}

func (s *Store) MarkSent(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.events {
		if slices.Contains(ids, s.st.events[i].ID) {
			s.st.events[i].Status = outbox.StatusSent
		}
	}
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.st.events {
		ev := &s.st.events[i]
		if ev.ID != id {
			continue
		}
		ev.RetryCount++
		ev.LastError = &errMsg
		ev.Status = outbox.StatusPending
		if ev.RetryCount >= outbox.MaxRetries {
			ev.Status = outbox.StatusFailed
		}
		return nil
	}
	return store.ErrNotFound
}

func (s *Store) ExtendLease(_ context.Context, relayID string, ids []int64, lease time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	until := s.now().Add(lease)
	for i := range s.st.events {
		ev := &s.st.events[i]
		if ev.RelayID == relayID && slices.Contains(ids, ev.ID) {
			ev.LeaseUntil = until
		}
	}
	return nil
}

func paginate[T any](items []T, page store.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	end := min(page.Offset+page.Limit, len(items))
	return items[page.Offset:end]
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) DecrementAvailable(_ context.Context, productID uuid.UUID, qty int) (bool, error) {
	p, ok := t.st.products[productID]
	if !ok || p.AvailableStock < qty {
		return false, nil
	}
	p.AvailableStock -= qty
	p.UpdatedAt = t.now()
	t.st.products[productID] = p
	return true, nil
}

func (t *tx) IncrementAvailable(_ context.Context, productID uuid.UUID, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
	}
	if p.AvailableStock+qty > p.TotalStock {
		return fmt.Errorf("product %s: %w", productID, errStockOverflow)
	}
	p.AvailableStock += qty
	p.UpdatedAt = t.now()
	t.st.products[productID] = p
	return nil
}

func (t *tx) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return catalog.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (t *tx) InsertReservation(_ context.Context, r reservation.Reservation) error {
	if _, ok := t.st.reservations[r.ID]; ok {
		return fmt.Errorf("reservation %s: %w", r.ID, store.ErrConflict)
	}
	t.st.reservations[r.ID] = r
	return nil
}

func (t *tx) LockReservation(_ context.Context, id uuid.UUID) (reservation.Reservation, error) {
	r, ok := t.st.reservations[id]
	if !ok {
		return reservation.Reservation{}, store.ErrNotFound
	}
	return r, nil
}

func (t *tx) SetReservationStatus(_ context.Context, id uuid.UUID, status reservation.Status, at time.Time) error {
	r, ok := t.st.reservations[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	t.st.reservations[id] = r
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o order.Order) error {
	if _, ok := t.st.orderByRes[o.ReservationID]; ok {
		return fmt.Errorf("order for reservation %s: %w", o.ReservationID, store.ErrConflict)
	}
	if _, ok := t.st.orders[o.ID]; ok {
		return fmt.Errorf("order %s: %w", o.ID, store.ErrConflict)
	}
	t.st.orders[o.ID] = o
	t.st.orderByRes[o.ReservationID] = o.ID
	return nil
}

func (t *tx) LockOrder(_ context.Context, id uuid.UUID) (order.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return order.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (t *tx) SetOrderStatus(_ context.Context, id uuid.UUID, status order.OrderStatus, at time.Time) error {
	o, ok := t.st.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	t.st.orders[id] = o
	return nil
}

func (t *tx) SetOrderPayment(_ context.Context, id uuid.UUID, p order.Payment) error {
	o, ok := t.st.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Payment = &p
	t.st.orders[id] = o
	return nil
}

func (t *tx) LockOrderByReservation(_ context.Context, reservationID uuid.UUID) (order.Order, error) {
	id, ok := t.st.orderByRes[reservationID]
	if !ok {
		return order.Order{}, store.ErrNotFound
	}
	return t.st.orders[id], nil
}

func (t *tx) MirrorPendingOrder(_ context.Context, reservationID uuid.UUID, status order.OrderStatus, at time.Time) (uuid.UUID, bool, error) {
	id, ok := t.st.orderByRes[reservationID]
	if !ok {
		return uuid.Nil, false, nil
	}
	o := t.st.orders[id]
	if o.Status != order.StatusPendingPayment {
		return uuid.Nil, false, nil
	}
	o.Status = status
	o.UpdatedAt = at
	t.st.orders[id] = o
	return id, true, nil
}

func (t *tx) AppendOutbox(_ context.Context, ev outbox.Event) error {
	t.st.nextEventID++
	ev.ID = t.st.nextEventID
	ev.Status = outbox.StatusPending
	ev.CreatedAt = t.now()
	t.st.events = append(t.st.events, ev)
	return nil
}
