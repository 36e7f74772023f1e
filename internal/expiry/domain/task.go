package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// NotifierValue is the liveness marker stored under a reservation's key.
const NotifierValue = "ACTIVE"

func NotifierKey(reservationID uuid.UUID) string {
	return fmt.Sprintf("reservation:%s", reservationID)
}

// Task is the payload of a delayed reconciliation.
type Task struct {
	ReservationID uuid.UUID `json:"reservationId"`
	Attempt       int       `json:"attempt"`
}

type Outcome string

const (
	// OutcomeNotDue: the notifier was still present when the task fired.
	OutcomeNotDue Outcome = "not_due"
	// OutcomeExpired: the reservation was ACTIVE and has been expired.
	OutcomeExpired Outcome = "expired"
	// OutcomeNoop: the reservation had already been resolved.
	OutcomeNoop Outcome = "noop"
)
