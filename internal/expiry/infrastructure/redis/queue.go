package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
)

const DefaultQueueKey = "reservation:expiry:queue"

// Queue is a delayed task queue on a sorted set scored by due time in unix
// nanoseconds. Removing a member is the claim: only the worker whose ZREM
// succeeds handles the task.
type Queue struct {
	log *slog.Logger
	rdb redis.UniversalClient
	key string
	now func() time.Time
}

type QueueOption func(*Queue)

func WithLogger(log *slog.Logger) QueueOption {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

func NewQueue(rdb redis.UniversalClient, key string, opts ...QueueOption) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	q := &Queue{log: slog.Default(), rdb: rdb, key: key, now: time.Now}
	for _, o := range opts {
		o(q)
	}
	return q
}

func (q *Queue) Schedule(ctx context.Context, task domain.Task, delay time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	return q.rdb.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(q.now().Add(delay).UnixNano()),
		Member: string(data),
	}).Err()
}

func (q *Queue) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Task, error) {
	members, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixNano(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range due tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, len(members))
	for _, m := range members {
		removed, err := q.rdb.ZRem(ctx, q.key, m).Result()
		if err != nil {
			return tasks, fmt.Errorf("claim task: %w", err)
		}
		if removed == 0 {
			continue
		}
		var task domain.Task
		if err := json.Unmarshal([]byte(m), &task); err != nil {
			// Already claimed, so the member is gone for good.
			q.log.ErrorContext(ctx, "dropped undecodable expiry task", "queue", q.key, "member", m, "err", err)
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (q *Queue) Size(ctx context.Context) (int64, error) {
	return q.rdb.ZCard(ctx, q.key).Result()
}
