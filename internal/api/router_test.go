package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/stock-reservation-system/internal/api"
	catalogapp "github.com/dmehra2102/stock-reservation-system/internal/catalog/application"
	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	cataloghttp "github.com/dmehra2102/stock-reservation-system/internal/catalog/infrastructure/http"
	inventoryapp "github.com/dmehra2102/stock-reservation-system/internal/inventory/application"
	orderapp "github.com/dmehra2102/stock-reservation-system/internal/order/application"
	orderhttp "github.com/dmehra2102/stock-reservation-system/internal/order/infrastructure/http"
	reservationapp "github.com/dmehra2102/stock-reservation-system/internal/reservation/application"
	reservationhttp "github.com/dmehra2102/stock-reservation-system/internal/reservation/infrastructure/http"
	"github.com/dmehra2102/stock-reservation-system/internal/store/memory"
	"github.com/dmehra2102/stock-reservation-system/pkg/logging"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type server struct {
	h       http.Handler
	clock   *clock
	product catalog.Product
}

func newServer(t *testing.T, stock int) *server {
	t.Helper()
	log := logging.New("error")
	c := &clock{now: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)}
	st := memory.New(memory.WithClock(c.Now))
	reservations := reservationapp.NewService(log, st, inventoryapp.NewLedger(log), nil, reservationapp.WithClock(c.Now))
	orders := orderapp.NewService(log, st, reservations, 5*time.Minute, orderapp.WithClock(c.Now))

	p, err := catalog.NewProduct("Monitor", 25000, stock, c.Now())
	require.NoError(t, err)
	require.NoError(t, st.CreateProduct(context.Background(), p))

	h := api.NewRouter(api.RouterConfig{Log: log, Health: st},
		cataloghttp.NewHandler(log, catalogapp.NewService(log, st)),
		reservationhttp.NewHandler(log, reservations, 5*time.Minute),
		orderhttp.NewHandler(log, orders),
	)
	return &server{h: h, clock: c, product: p}
}

func (s *server) do(t *testing.T, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func (s *server) hold(qty string) string {
	return `{"productId":"` + s.product.ID.String() + `","qty":` + qty + `}`
}

func TestHealthz(t *testing.T) {
	s := newServer(t, 1)
	code, env := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
}

func TestCreateReservation_Validation(t *testing.T) {
	s := newServer(t, 5)
	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "zero qty", body: s.hold("0"), code: "INVALID_QUANTITY"},
		{name: "fractional qty", body: s.hold("1.5"), code: "INVALID_QUANTITY"},
		{name: "missing qty", body: `{"productId":"` + s.product.ID.String() + `"}`, code: "INVALID_QUANTITY"},
		{name: "bad product id", body: `{"productId":"abc","qty":1}`, code: "INVALID_ID"},
		{name: "not json", body: `{`, code: "INVALID_BODY"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, env := s.do(t, http.MethodPost, "/reservations", tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, env.Success)
			assert.Equal(t, tc.code, env.Error)
		})
	}
}

func TestReservationLifecycle(t *testing.T) {
	s := newServer(t, 2)

	code, env := s.do(t, http.MethodPost, "/reservations", s.hold("2"))
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ReservationID string    `json:"reservationId"`
		ExpiresAt     time.Time `json:"expiresAt"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, s.clock.Now().Add(5*time.Minute), created.ExpiresAt.UTC())

	code, env = s.do(t, http.MethodPost, "/reservations", s.hold("1"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "OUT_OF_STOCK_OR_NOT_FOUND", env.Error)

	code, env = s.do(t, http.MethodGet, "/products/"+s.product.ID.String(), "")
	require.Equal(t, http.StatusOK, code)
	var p struct {
		AvailableStock int `json:"availableStock"`
		ReservedStock  int `json:"reservedStock"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 0, p.AvailableStock)
	assert.Equal(t, 2, p.ReservedStock)

	path := "/reservations/" + created.ReservationID
	code, env = s.do(t, http.MethodPost, path+"/confirm", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Reservation confirmed", env.Message)

	code, env = s.do(t, http.MethodPost, path+"/confirm", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Reservation already confirmed", env.Message)

	code, env = s.do(t, http.MethodPost, path+"/cancel", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "RESERVATION_ALREADY_CONFIRMED", env.Error)
}

func TestConfirmReservation_Expired(t *testing.T) {
	s := newServer(t, 2)
	code, env := s.do(t, http.MethodPost, "/reservations", s.hold("1"))
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ReservationID string `json:"reservationId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	s.clock.Advance(6 * time.Minute)
	code, env = s.do(t, http.MethodPost, "/reservations/"+created.ReservationID+"/confirm", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "RESERVATION_EXPIRED", env.Error)

	code, env = s.do(t, http.MethodPost, "/reservations/"+created.ReservationID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "RESERVATION_ALREADY_EXPIRED", env.Error)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	s := newServer(t, 1)
	missing := "/reservations/6b1f0c8e-1d2a-4b3c-8d4e-5f6a7b8c9d0e"

	code, env := s.do(t, http.MethodGet, missing, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "RESERVATION_NOT_FOUND", env.Error)

	code, env = s.do(t, http.MethodPost, "/reservations/not-a-uuid/confirm", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_ID", env.Error)

	code, env = s.do(t, http.MethodGet, "/order/6b1f0c8e-1d2a-4b3c-8d4e-5f6a7b8c9d0e", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "ORDER_NOT_FOUND", env.Error)

	code, env = s.do(t, http.MethodGet, "/products/6b1f0c8e-1d2a-4b3c-8d4e-5f6a7b8c9d0e", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Error)

	code, env = s.do(t, http.MethodGet, "/reservations?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_QUERY", env.Error)
}

func TestOrderLifecycle(t *testing.T) {
	s := newServer(t, 3)

	code, env := s.do(t, http.MethodPost, "/order", `{"productId":"6b1f0c8e-1d2a-4b3c-8d4e-5f6a7b8c9d0e","qty":1}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", env.Error)

	code, env = s.do(t, http.MethodPost, "/order", s.hold("2"))
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		OrderID string `json:"orderId"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PENDING_PAYMENT", created.Status)

	code, env = s.do(t, http.MethodGet, "/order/"+created.OrderID, "")
	require.Equal(t, http.StatusOK, code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.EqualValues(t, 50000, got["totalAmount"])
	assert.NotContains(t, got, "payment")

	code, env = s.do(t, http.MethodPost, "/order/"+created.OrderID+"/confirm", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Order confirmed successfully", env.Message)

	code, env = s.do(t, http.MethodPost, "/order/"+created.OrderID+"/cancel", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ORDER_NOT_CANCELLABLE", env.Error)

	code, env = s.do(t, http.MethodGet, "/order?status=CONFIRMED", "")
	require.Equal(t, http.StatusOK, code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}
