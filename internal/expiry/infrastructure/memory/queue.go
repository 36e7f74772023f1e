package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
)

type entry struct {
	task domain.Task
	due  time.Time
}

type Queue struct {
	mu      sync.Mutex
	entries []entry
	now     func() time.Time
}

func NewQueue(now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{now: now}
}

func (q *Queue) Schedule(_ context.Context, task domain.Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry{task: task, due: q.now().Add(delay)})
	slices.SortStableFunc(q.entries, func(a, b entry) int { return a.due.Compare(b.due) })
	return nil
}

func (q *Queue) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var tasks []domain.Task
	i := 0
	for i < len(q.entries) && len(tasks) < limit && !q.entries[i].due.After(now) {
		tasks = append(tasks, q.entries[i].task)
		i++
	}
	q.entries = q.entries[i:]
	return tasks, nil
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
