package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/stock-reservation-system/internal/inventory/domain"
)

type fakeStock struct {
	available map[uuid.UUID]int
	err       error
}

func (f *fakeStock) DecrementAvailable(_ context.Context, id uuid.UUID, qty int) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	n, ok := f.available[id]
	if !ok || n < qty {
		return false, nil
	}
	f.available[id] = n - qty
	return true, nil
}

func (f *fakeStock) IncrementAvailable(_ context.Context, id uuid.UUID, qty int) error {
	if f.err != nil {
		return f.err
	}
	f.available[id] += qty
	return nil
}

func TestReserve_DecrementsWhenEnoughStock(t *testing.T) {
	pid := uuid.New()
	w := &fakeStock{available: map[uuid.UUID]int{pid: 5}}
	l := NewLedger(nil)

	require.NoError(t, l.Reserve(context.Background(), w, pid, 5))
	assert.Equal(t, 0, w.available[pid])

	err := l.Reserve(context.Background(), w, pid, 1)
	assert.ErrorIs(t, err, domain.ErrOutOfStockOrNotFound)
	assert.Equal(t, 0, w.available[pid])
}

func TestReserve_UnknownProductLooksLikeOutOfStock(t *testing.T) {
	w := &fakeStock{available: map[uuid.UUID]int{}}
	err := NewLedger(nil).Reserve(context.Background(), w, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrOutOfStockOrNotFound)
}

func TestReserveAndRelease_RejectNonPositiveQuantity(t *testing.T) {
	pid := uuid.New()
	w := &fakeStock{available: map[uuid.UUID]int{pid: 5}}
	l := NewLedger(nil)

	assert.ErrorIs(t, l.Reserve(context.Background(), w, pid, 0), domain.ErrInvalidQuantity)
	assert.ErrorIs(t, l.Release(context.Background(), w, pid, -1), domain.ErrInvalidQuantity)
	assert.Equal(t, 5, w.available[pid])
}

func TestRelease_WrapsWriterError(t *testing.T) {
	boom := errors.New("boom")
	w := &fakeStock{err: boom}
	err := NewLedger(nil).Release(context.Background(), w, uuid.New(), 1)
	assert.ErrorIs(t, err, boom)
}
