//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/dmehra2102/stock-reservation-system/internal/catalog/domain"
	expiryapp "github.com/dmehra2102/stock-reservation-system/internal/expiry/application"
	expiryredis "github.com/dmehra2102/stock-reservation-system/internal/expiry/infrastructure/redis"
	inventory "github.com/dmehra2102/stock-reservation-system/internal/inventory/application"
	invdomain "github.com/dmehra2102/stock-reservation-system/internal/inventory/domain"
	orderapp "github.com/dmehra2102/stock-reservation-system/internal/order/application"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	reservationapp "github.com/dmehra2102/stock-reservation-system/internal/reservation/application"
	resdomain "github.com/dmehra2102/stock-reservation-system/internal/reservation/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/internal/store/postgres"
	"github.com/dmehra2102/stock-reservation-system/pkg/logging"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
	"github.com/dmehra2102/stock-reservation-system/test/integration"
)

var env *integration.Env

func TestMain(m *testing.M) {
	ctx := context.Background()
	var err error
	env, err = integration.Setup(ctx, integration.WithKafka())
	if err != nil {
		panic(err)
	}
	code := m.Run()
	env.Teardown(ctx)
	os.Exit(code)
}

type stack struct {
	store        *postgres.Store
	outbox       *postgres.OutboxStore
	rdb          *redis.Client
	queue        *expiryredis.Queue
	reservations *reservationapp.Service
	orders       *orderapp.Service
	reconciler   *expiryapp.Reconciler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	log := logging.New("error")

	pool, err := postgres.Connect(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))

	rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.FlushAll(ctx).Err())

	st := postgres.NewStore(log, pool)
	notifier := expiryredis.NewNotifier(rdb)
	queue := expiryredis.NewQueue(rdb, "")
	res := reservationapp.NewService(log, st, inventory.NewLedger(log), expiryapp.NewCoordinator(log, notifier, queue))
	return &stack{
		store:        st,
		outbox:       postgres.NewOutboxStore(log, pool),
		rdb:          rdb,
		queue:        queue,
		reservations: res,
		orders:       orderapp.NewService(log, st, res, time.Second),
		reconciler:   expiryapp.NewReconciler(log, notifier, res),
	}
}

func (s *stack) product(t *testing.T, stock int) catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct("Integration "+t.Name(), 1500, stock, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, s.store.CreateProduct(context.Background(), p))
	return p
}

func TestPostgres_ConcurrentHoldsNeverOversell(t *testing.T) {
	s := newStack(t)
	p := s.product(t, 25)
	ctx := context.Background()

	var ok atomic.Int32
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.reservations.Create(ctx, reservationapp.CreateInput{ProductID: p.ID, Quantity: 1, TTL: time.Minute})
			if err == nil {
				ok.Add(1)
				return
			}
			if !errors.Is(err, invdomain.ErrOutOfStockOrNotFound) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 25, ok.Load())
	got, err := s.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.AvailableStock)
}

func TestPostgres_FailedUnitRollsBack(t *testing.T) {
	s := newStack(t)
	p := s.product(t, 3)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		ok, err := tx.DecrementAvailable(ctx, p.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.AvailableStock)
}

func TestPostgres_OrderExpiresThroughQueue(t *testing.T) {
	s := newStack(t)
	p := s.product(t, 2)
	ctx := context.Background()

	created, err := s.orders.CreateOrder(ctx, orderapp.CreateInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)

	worker := expiryapp.NewWorker(logging.New("error"), s.queue, s.reconciler, expiryapp.WorkerConfig{})
	require.Eventually(t, func() bool {
		if _, err := worker.Poll(ctx); err != nil {
			return false
		}
		r, err := s.reservations.Get(ctx, created.Order.ReservationID)
		return err == nil && r.Status == resdomain.StatusExpired
	}, 10*time.Second, 200*time.Millisecond)

	o, err := s.orders.GetOrder(ctx, created.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusExpired, o.Status)
	got, err := s.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableStock)
}

func TestPostgres_OrderConfirmRacingExpiryResolvesCleanly(t *testing.T) {
	s := newStack(t)
	const n = 20
	p := s.product(t, n)
	ctx := context.Background()

	created := make([]orderapp.CreateResult, n)
	for i := range n {
		var err error
		created[i], err = s.orders.CreateOrder(ctx, orderapp.CreateInput{ProductID: p.ID, Quantity: 1})
		require.NoError(t, err)
	}
	time.Sleep(1100 * time.Millisecond)

	var wg sync.WaitGroup
	for _, c := range created {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.orders.ConfirmOrder(ctx, c.Order.ID, nil)
			if !errors.Is(err, resdomain.ErrExpired) && !errors.Is(err, order.ErrNotConfirmable) {
				t.Errorf("confirm %s: %v", c.Order.ID, err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := s.reservations.Expire(ctx, c.Order.ReservationID); err != nil {
				t.Errorf("expire %s: %v", c.Order.ReservationID, err)
			}
		}()
	}
	wg.Wait()

	for _, c := range created {
		o, err := s.orders.GetOrder(ctx, c.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, order.StatusExpired, o.Status)
	}
	got, err := s.store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.AvailableStock)
}

func TestPostgres_OutboxReachesKafka(t *testing.T) {
	s := newStack(t)
	p := s.product(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "reservation.events.it"

	conn, err := kafka.DialLeader(ctx, "tcp", env.KAddr[0], topic, 0)
	require.NoError(t, err)
	_ = conn.Close()

	r, err := s.reservations.Create(ctx, reservationapp.CreateInput{ProductID: p.ID, Quantity: 1, TTL: time.Minute})
	require.NoError(t, err)

	log := logging.New("error")
	writer := &kafka.Writer{Addr: kafka.TCP(env.KAddr...), AllowAutoTopicCreation: true}
	defer writer.Close()
	relay := outbox.NewRelay(log, s.outbox, outbox.NewDispatcher(log, writer, topic), "it-relay")
	for {
		n, err := relay.Tick(ctx)
		require.NoError(t, err)
		if n == 0 {
			break
		}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: env.KAddr, Topic: topic, Partition: 0})
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(ctx)
		require.NoError(t, err)
		if string(msg.Key) == r.ID.String() {
			assert.Contains(t, string(msg.Value), p.ID.String())
			return
		}
	}
}
