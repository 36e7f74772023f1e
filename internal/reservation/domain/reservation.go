package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusConfirmed Status = "CONFIRMED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusConfirmed, StatusExpired, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown reservation status %q", s)
}

var (
	ErrInvalidQuantity  = errors.New("quantity must be a positive integer")
	ErrInvalidTTL       = errors.New("hold duration must be positive")
	ErrNotFound         = errors.New("reservation not found")
	ErrNotConfirmable   = errors.New("reservation is not confirmable")
	ErrExpired          = errors.New("reservation has expired")
	ErrAlreadyConfirmed = errors.New("reservation already confirmed")
	ErrAlreadyExpired   = errors.New("reservation already expired")
)

type Reservation struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	Status    Status
	ExpiresAt time.Time
	UserID    *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

func New(productID uuid.UUID, qty int, userID *uuid.UUID, ttl time.Duration, now time.Time) (Reservation, error) {
	if qty < 1 {
		return Reservation{}, ErrInvalidQuantity
	}
	if ttl <= 0 {
		return Reservation{}, ErrInvalidTTL
	}
	return Reservation{
		ID:        uuid.New(),
		ProductID: productID,
		Quantity:  qty,
		Status:    StatusActive,
		ExpiresAt: now.Add(ttl),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r Reservation) Lapsed(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

type Decision int

const (
	// Apply performs the requested transition.
	Apply Decision = iota
	// Idempotent means the requested transition already happened.
	Idempotent
	// Expire means the hold lapsed and must be expired instead.
	Expire
)

func (r Reservation) DecideConfirm(now time.Time) (Decision, error) {
	switch r.Status {
	case StatusConfirmed:
		return Idempotent, nil
	case StatusCancelled, StatusExpired:
		return 0, ErrNotConfirmable
	}
	if r.Lapsed(now) {
		return Expire, nil
	}
	return Apply, nil
}

func (r Reservation) DecideCancel() (Decision, error) {
	switch r.Status {
	case StatusCancelled:
		return Idempotent, nil
	case StatusConfirmed:
		return 0, ErrAlreadyConfirmed
	case StatusExpired:
		return 0, ErrAlreadyExpired
	}
	return Apply, nil
}

// Expirable reports whether a reconciliation may expire the reservation.
// Only ACTIVE reservations are; every other status is already resolved.
func (r Reservation) Expirable() bool {
	return r.Status == StatusActive
}
