package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventCreated   = "ReservationCreated"
	EventConfirmed = "ReservationConfirmed"
	EventCancelled = "ReservationCancelled"
	EventExpired   = "ReservationExpired"
)

type ReservationCreated struct {
	ReservationID uuid.UUID  `json:"reservationId"`
	ProductID     uuid.UUID  `json:"productId"`
	Quantity      int        `json:"quantity"`
	ExpiresAt     time.Time  `json:"expiresAt"`
	UserID        *uuid.UUID `json:"userId,omitempty"`
}

type ReservationResolved struct {
	ReservationID uuid.UUID `json:"reservationId"`
	ProductID     uuid.UUID `json:"productId"`
	Quantity      int       `json:"quantity"`
	Status        Status    `json:"status"`
	At            time.Time `json:"at"`
}
