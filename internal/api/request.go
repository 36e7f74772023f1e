package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

// HoldRequest is the body of POST /reservations and POST /order.
type HoldRequest struct {
	ProductID uuid.UUID
	Quantity  int
	UserID    *uuid.UUID
}

type holdBody struct {
	ProductID string      `json:"productId"`
	Qty       json.Number `json:"qty"`
}

func DecodeHold(r *http.Request) (HoldRequest, error) {
	var body holdBody
	if err := httpx.DecodeJSON(r, &body); err != nil {
		return HoldRequest{}, err
	}
	pid, err := uuid.Parse(body.ProductID)
	if err != nil {
		return HoldRequest{}, httpx.ErrInvalidID
	}
	qty, err := body.Qty.Int64()
	if err != nil || qty < 1 || qty > int64(^uint32(0)>>1) {
		return HoldRequest{}, reservation.ErrInvalidQuantity
	}
	userID, err := httpx.UserID(r)
	if err != nil {
		return HoldRequest{}, err
	}
	return HoldRequest{ProductID: pid, Quantity: int(qty), UserID: userID}, nil
}

func DecodePage(r *http.Request) (store.Page, error) {
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		return store.Page{}, err
	}
	offset, err := httpx.QueryInt(r, "offset")
	if err != nil {
		return store.Page{}, err
	}
	return store.Page{Limit: limit, Offset: offset}.Normalize(), nil
}
