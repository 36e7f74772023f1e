package domain

import (
	"errors"
	"time"
)

const EventProcessed = "PaymentProcessed"

var ErrMalformedEvent = errors.New("malformed payment event")

// PaymentProcessed is published by the payment provider integration once a
// charge for an order has succeeded.
type PaymentProcessed struct {
	OrderID   string    `json:"orderId"`
	Provider  string    `json:"provider"`
	PaymentID string    `json:"paymentId"`
	Method    string    `json:"method"`
	PaidAt    time.Time `json:"paidAt"`
}
