package domain

import "github.com/google/uuid"

const (
	EventCreated   = "OrderCreated"
	EventConfirmed = "OrderConfirmed"
	EventCancelled = "OrderCancelled"
	EventExpired   = "OrderExpired"
)

// ResolvedEvent names the event recorded when an order reaches a terminal
// status.
func ResolvedEvent(s OrderStatus) string {
	switch s {
	case StatusConfirmed:
		return EventConfirmed
	case StatusCancelled:
		return EventCancelled
	case StatusExpired:
		return EventExpired
	}
	return ""
}

type OrderCreated struct {
	OrderID       uuid.UUID `json:"orderId"`
	ReservationID uuid.UUID `json:"reservationId"`
	ProductID     uuid.UUID `json:"productId"`
	Quantity      int       `json:"quantity"`
	TotalCents    int64     `json:"totalCents"`
}

type OrderResolved struct {
	OrderID       uuid.UUID   `json:"orderId"`
	ReservationID uuid.UUID   `json:"reservationId"`
	Status        OrderStatus `json:"status"`
}
