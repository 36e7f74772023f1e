package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
)

type WorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Worker polls the queue for due reconciliation tasks.
type Worker struct {
	log     *slog.Logger
	queue   Queue
	handler Handler
	cfg     WorkerConfig
}

func NewWorker(log *slog.Logger, queue Queue, handler Handler, cfg WorkerConfig) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{log: log, queue: queue, handler: handler, cfg: cfg.withDefaults()}
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()

	w.log.Info("expiry worker started", "interval", w.cfg.Interval, "batch", w.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("expiry worker stopping")
			return nil
		case <-t.C:
			for {
				n, err := w.Poll(ctx)
				if err != nil {
					w.log.Error("expiry poll failed", "err", err)
					break
				}
				if n < w.cfg.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// Poll claims one batch of due tasks and handles each. It returns the number
// claimed.
func (w *Worker) Poll(ctx context.Context) (int, error) {
	tasks, err := w.queue.ClaimDue(ctx, w.cfg.Now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, task := range tasks {
		w.handle(ctx, task)
	}
	return len(tasks), nil
}

func (w *Worker) handle(ctx context.Context, task domain.Task) {
	outcome, err := w.handler.Reconcile(ctx, task.ReservationID)
	if err == nil {
		w.log.DebugContext(ctx, "reconciliation done", "reservation_id", task.ReservationID, "outcome", outcome)
		return
	}

	if task.Attempt >= w.cfg.MaxAttempts {
		w.log.ErrorContext(ctx, "reconciliation gave up", "reservation_id", task.ReservationID, "attempt", task.Attempt, "err", err)
		return
	}
	w.log.WarnContext(ctx, "reconciliation failed, retrying", "reservation_id", task.ReservationID, "attempt", task.Attempt, "err", err)
	task.Attempt++
	if err := w.queue.Schedule(ctx, task, w.cfg.RetryDelay); err != nil {
		w.log.ErrorContext(ctx, "reschedule reconciliation failed", "reservation_id", task.ReservationID, "err", err)
	}
}
