package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
)

func TestNewOrder_SnapshotsProduct(t *testing.T) {
	now := time.Now().UTC()
	p, err := catalog.NewProduct("Keyboard", 4999, 10, now)
	require.NoError(t, err)

	o := NewOrder(uuid.New(), p, 3, nil, now)
	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.Equal(t, "Keyboard", o.ProductName)
	assert.Equal(t, int64(4999), o.UnitPriceCents)
	assert.Equal(t, int64(14997), o.TotalCents)

	p.Name = "Renamed"
	p.PriceCents = 1
	assert.Equal(t, "Keyboard", o.ProductName)
	assert.Equal(t, int64(14997), o.TotalCents)
}

func TestDecideConfirm(t *testing.T) {
	d, err := Order{Status: StatusPendingPayment}.DecideConfirm()
	require.NoError(t, err)
	assert.Equal(t, reservation.Apply, d)

	d, err = Order{Status: StatusConfirmed}.DecideConfirm()
	require.NoError(t, err)
	assert.Equal(t, reservation.Idempotent, d)

	for _, s := range []OrderStatus{StatusCancelled, StatusExpired, StatusFailed} {
		_, err := Order{Status: s}.DecideConfirm()
		assert.ErrorIs(t, err, ErrNotConfirmable, s)
	}
	_, err = Order{Status: "UNKNOWN"}.DecideConfirm()
	assert.ErrorIs(t, err, ErrNotPendingPayment)
}

func TestCheckCancel_OnlyPendingPayment(t *testing.T) {
	assert.NoError(t, Order{Status: StatusPendingPayment}.CheckCancel())
	for _, s := range []OrderStatus{StatusConfirmed, StatusCancelled, StatusExpired, StatusFailed} {
		assert.ErrorIs(t, Order{Status: s}.CheckCancel(), ErrNotCancellable, s)
	}
}

func TestMirrorOf(t *testing.T) {
	_, ok := MirrorOf(reservation.StatusActive)
	assert.False(t, ok)

	s, ok := MirrorOf(reservation.StatusExpired)
	assert.True(t, ok)
	assert.Equal(t, StatusExpired, s)

	s, ok = MirrorOf(reservation.StatusConfirmed)
	assert.True(t, ok)
	assert.Equal(t, StatusConfirmed, s)

	s, ok = MirrorOf(reservation.StatusCancelled)
	assert.True(t, ok)
	assert.Equal(t, StatusCancelled, s)
}
