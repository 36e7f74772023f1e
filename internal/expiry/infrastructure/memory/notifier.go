package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notifier keeps deadlines in a map and treats a key as gone once its
// deadline is reached.
type Notifier struct {
	mu   sync.Mutex
	keys map[uuid.UUID]time.Time
	now  func() time.Time
}

func NewNotifier(now func() time.Time) *Notifier {
	if now == nil {
		now = time.Now
	}
	return &Notifier{keys: map[uuid.UUID]time.Time{}, now: now}
}

func (n *Notifier) Arm(_ context.Context, id uuid.UUID, ttl time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keys[id] = n.now().Add(ttl)
	return nil
}

func (n *Notifier) Disarm(_ context.Context, id uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.keys, id)
	return nil
}

func (n *Notifier) Armed(_ context.Context, id uuid.UUID) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	deadline, ok := n.keys[id]
	if !ok {
		return false, nil
	}
	if !n.now().Before(deadline) {
		delete(n.keys, id)
		return false, nil
	}
	return true, nil
}
