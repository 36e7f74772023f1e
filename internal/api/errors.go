package api

import (
	"net/http"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	inventory "github.com/dmehra2102/stock-reservation-system/internal/inventory/domain"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservation "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/pkg/httpx"
)

// ErrorRules is the single place domain errors become HTTP statuses.
var ErrorRules = httpx.Rules{
	{Target: httpx.ErrInvalidID, Status: http.StatusBadRequest, Code: "INVALID_ID"},
	{Target: httpx.ErrInvalidBody, Status: http.StatusBadRequest, Code: "INVALID_BODY"},
	{Target: httpx.ErrInvalidQuery, Status: http.StatusBadRequest, Code: "INVALID_QUERY"},
	{Target: reservation.ErrInvalidQuantity, Status: http.StatusBadRequest, Code: "INVALID_QUANTITY"},
	{Target: inventory.ErrInvalidQuantity, Status: http.StatusBadRequest, Code: "INVALID_QUANTITY"},
	{Target: reservation.ErrInvalidTTL, Status: http.StatusBadRequest, Code: "INVALID_TTL"},

	{Target: catalog.ErrNotFound, Status: http.StatusNotFound, Code: "PRODUCT_NOT_FOUND"},
	{Target: order.ErrProductNotFound, Status: http.StatusNotFound, Code: "PRODUCT_NOT_FOUND"},
	{Target: reservation.ErrNotFound, Status: http.StatusNotFound, Code: "RESERVATION_NOT_FOUND"},
	{Target: order.ErrNotFound, Status: http.StatusNotFound, Code: "ORDER_NOT_FOUND"},

	{Target: inventory.ErrOutOfStockOrNotFound, Status: http.StatusConflict, Code: "OUT_OF_STOCK_OR_NOT_FOUND"},
	{Target: reservation.ErrNotConfirmable, Status: http.StatusConflict, Code: "RESERVATION_NOT_CONFIRMABLE"},
	{Target: reservation.ErrExpired, Status: http.StatusConflict, Code: "RESERVATION_EXPIRED"},
	{Target: reservation.ErrAlreadyConfirmed, Status: http.StatusConflict, Code: "RESERVATION_ALREADY_CONFIRMED"},
	{Target: reservation.ErrAlreadyExpired, Status: http.StatusConflict, Code: "RESERVATION_ALREADY_EXPIRED"},
	{Target: order.ErrNotConfirmable, Status: http.StatusConflict, Code: "ORDER_NOT_CONFIRMABLE"},
	{Target: order.ErrNotPendingPayment, Status: http.StatusConflict, Code: "ORDER_NOT_PENDING_PAYMENT"},
	{Target: order.ErrNotCancellable, Status: http.StatusConflict, Code: "ORDER_NOT_CANCELLABLE"},
}
