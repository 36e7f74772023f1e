package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderapp "github.com/dmehra2102/stock-reservation-system/internal/order/application"
	order "github.com/dmehra2102/stock-reservation-system/internal/order/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/payment/application"
	"github.com/dmehra2102/stock-reservation-system/internal/payment/domain"
	"github.com/dmehra2102/stock-reservation-system/pkg/idempotency"
)

type sliceReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
}

func (r *sliceReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *sliceReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *sliceReader) Close() error { return nil }

func (r *sliceReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type countingConfirmer struct {
	mu    sync.Mutex
	calls []uuid.UUID
}

func (c *countingConfirmer) ConfirmOrder(_ context.Context, id uuid.UUID, _ *order.Payment) (orderapp.ConfirmResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, id)
	return orderapp.ConfirmResult{}, nil
}

// flakyConfirmer fails its first failures calls.
type flakyConfirmer struct {
	mu       sync.Mutex
	failures int
	calls    int
	applied  int
}

func (c *flakyConfirmer) ConfirmOrder(context.Context, uuid.UUID, *order.Payment) (orderapp.ConfirmResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls <= c.failures {
		return orderapp.ConfirmResult{}, errors.New("connection refused")
	}
	c.applied++
	return orderapp.ConfirmResult{}, nil
}

func (c *flakyConfirmer) counts() (calls, applied int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls, c.applied
}

func newIdem(t *testing.T) *idempotency.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return idempotency.NewStore(rdb, time.Minute)
}

func message(t *testing.T, offset int64, eventType string, orderID uuid.UUID) kafka.Message {
	t.Helper()
	body, err := json.Marshal(domain.PaymentProcessed{OrderID: orderID.String(), PaymentID: "p", PaidAt: time.Now()})
	require.NoError(t, err)
	return kafka.Message{
		Topic:   "payments",
		Offset:  offset,
		Value:   body,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
}

func TestConsumer_AppliesOnceAndCommitsEverything(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	id := uuid.New()
	reader := &sliceReader{msgs: []kafka.Message{
		message(t, 1, domain.EventProcessed, id),
		message(t, 1, domain.EventProcessed, id), // redelivery
		message(t, 2, "PaymentRefunded", uuid.New()),
		{Topic: "payments", Offset: 3, Value: []byte("not json")},
	}}
	confirmer := &countingConfirmer{}
	c := NewConsumerWithReader(nil, reader, application.NewService(nil, confirmer), idempotency.NewStore(rdb, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.committedCount() == 4 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	confirmer.mu.Lock()
	defer confirmer.mu.Unlock()
	assert.Equal(t, []uuid.UUID{id}, confirmer.calls)
}

func TestConsumer_RetriesUntilConfirmerRecovers(t *testing.T) {
	idem := newIdem(t)
	id := uuid.New()
	reader := &sliceReader{msgs: []kafka.Message{
		message(t, 7, domain.EventProcessed, id),
		message(t, 7, domain.EventProcessed, id), // redelivery
	}}
	confirmer := &flakyConfirmer{failures: 3}
	c := NewConsumerWithReader(nil, reader, application.NewService(nil, confirmer), idem)
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return reader.committedCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	calls, applied := confirmer.counts()
	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, applied)
}

func TestConsumer_StoppedMidRetryLeavesMessageForRedelivery(t *testing.T) {
	idem := newIdem(t)
	msg := message(t, 9, domain.EventProcessed, uuid.New())

	failing := &flakyConfirmer{failures: 1 << 30}
	reader := &sliceReader{msgs: []kafka.Message{msg}}
	c := NewConsumerWithReader(nil, reader, application.NewService(nil, failing), idem)
	c.backoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { calls, _ := failing.counts(); return calls >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, reader.committedCount())

	processed, err := idem.Processed(context.Background(), idem.Key(msg.Topic, msg.Partition, msg.Offset))
	require.NoError(t, err)
	assert.False(t, processed)

	recovered := &flakyConfirmer{}
	reader = &sliceReader{msgs: []kafka.Message{msg}}
	c = NewConsumerWithReader(nil, reader, application.NewService(nil, recovered), idem)

	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	go func() { done <- c.Run(ctx) }()
	require.Eventually(t, func() bool { return reader.committedCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	_, applied := recovered.counts()
	assert.Equal(t, 1, applied)
}
