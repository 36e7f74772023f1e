package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/stock-reservation-system/internal/expiry/domain"
)

type Notifier struct {
	rdb redis.UniversalClient
}

func NewNotifier(rdb redis.UniversalClient) *Notifier {
	return &Notifier{rdb: rdb}
}

func (n *Notifier) Arm(ctx context.Context, reservationID uuid.UUID, ttl time.Duration) error {
	return n.rdb.Set(ctx, domain.NotifierKey(reservationID), domain.NotifierValue, ttl).Err()
}

// Disarm deletes the key; a key that already lapsed is not an error.
func (n *Notifier) Disarm(ctx context.Context, reservationID uuid.UUID) error {
	return n.rdb.Del(ctx, domain.NotifierKey(reservationID)).Err()
}

func (n *Notifier) Armed(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	count, err := n.rdb.Exists(ctx, domain.NotifierKey(reservationID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
