package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
	"github.com/dmehra2102/stock-reservation-system/internal/expiry/infrastructure/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type flakyHandler struct {
	mu       sync.Mutex
	failures int
	calls    []domain.Task
}

func (h *flakyHandler) Reconcile(_ context.Context, id uuid.UUID) (domain.Outcome, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, domain.Task{ReservationID: id})
	if h.failures > 0 {
		h.failures--
		return "", errors.New("store unavailable")
	}
	return domain.OutcomeExpired, nil
}

func (h *flakyHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func TestPoll_OnlyClaimsDueTasks(t *testing.T) {
	c := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := memory.NewQueue(c.Now)
	h := &flakyHandler{}
	w := NewWorker(nil, q, h, WorkerConfig{Now: c.Now})
	ctx := context.Background()

	require.NoError(t, q.Schedule(ctx, domain.Task{ReservationID: uuid.New(), Attempt: 1}, time.Second))
	require.NoError(t, q.Schedule(ctx, domain.Task{ReservationID: uuid.New(), Attempt: 1}, time.Minute))

	n, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	c.now = c.now.Add(time.Second)
	n, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, q.Len())
}

func TestPoll_RetriesFailedTaskUntilMaxAttempts(t *testing.T) {
	c := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := memory.NewQueue(c.Now)
	h := &flakyHandler{failures: 10}
	w := NewWorker(nil, q, h, WorkerConfig{Now: c.Now, MaxAttempts: 3, RetryDelay: 5 * time.Second})
	ctx := context.Background()

	require.NoError(t, q.Schedule(ctx, domain.Task{ReservationID: uuid.New(), Attempt: 1}, 0))

	for attempt := 1; attempt <= 3; attempt++ {
		n, err := w.Poll(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n, "attempt %d", attempt)

		n, err = w.Poll(ctx)
		require.NoError(t, err)
		require.Equal(t, 0, n, "retry waits for the delay")
		c.now = c.now.Add(5 * time.Second)
	}

	assert.Equal(t, 3, h.callCount())
	assert.Equal(t, 0, q.Len(), "gave up after the last attempt")
}

func TestPoll_RecoversAfterTransientFailure(t *testing.T) {
	c := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := memory.NewQueue(c.Now)
	h := &flakyHandler{failures: 1}
	w := NewWorker(nil, q, h, WorkerConfig{Now: c.Now, RetryDelay: time.Second})
	ctx := context.Background()

	require.NoError(t, q.Schedule(ctx, domain.Task{ReservationID: uuid.New(), Attempt: 1}, 0))
	_, err := w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())

	c.now = c.now.Add(time.Second)
	_, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 2, h.callCount())
}

func TestRun_StopsOnCancel(t *testing.T) {
	q := memory.NewQueue(nil)
	h := &flakyHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Schedule(ctx, domain.Task{ReservationID: uuid.New(), Attempt: 1}, 0))

	done := make(chan error, 1)
	go func() {
		done <- NewWorker(nil, q, h, WorkerConfig{Interval: 5 * time.Millisecond}).Run(ctx)
	}()

	require.Eventually(t, func() bool { return h.callCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
