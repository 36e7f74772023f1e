// Package bootstrap opens the backing services selected by configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	expiryapp "github.com/dmehra2102/stock-reservation-system/internal/expiry/application"
	expirymem "github.com/dmehra2102/stock-reservation-system/internal/expiry/infrastructure/memory"
	expiryredis "github.com/dmehra2102/stock-reservation-system/internal/expiry/infrastructure/redis"
	"github.com/dmehra2102/stock-reservation-system/internal/store"
	"github.com/dmehra2102/stock-reservation-system/internal/store/memory"
	"github.com/dmehra2102/stock-reservation-system/internal/store/postgres"
	"github.com/dmehra2102/stock-reservation-system/pkg/config"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
)

type Deps struct {
	Store    store.Store
	Outbox   outbox.Store
	Redis    *redis.Client
	Notifier expiryapp.Notifier
	Queue    expiryapp.Queue

	closers []func()
}

func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Deps, error) {
	if cfg.StoreDriver == config.DriverMemory {
		st := memory.New()
		log.Warn("using in-memory store; state is lost on exit")
		return &Deps{
			Store:    st,
			Outbox:   st,
			Notifier: expirymem.NewNotifier(time.Now),
			Queue:    expirymem.NewQueue(time.Now),
		}, nil
	}

	d := &Deps{}
	pool, err := postgres.Connect(ctx, cfg.PGURL)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, pool.Close)
	if err := postgres.Migrate(ctx, pool); err != nil {
		d.Close()
		return nil, err
	}
	d.Store = postgres.NewStore(log, pool)
	d.Outbox = postgres.NewOutboxStore(log, pool)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	d.Redis = rdb
	d.Notifier = expiryredis.NewNotifier(rdb)
	d.Queue = expiryredis.NewQueue(rdb, expiryredis.DefaultQueueKey, expiryredis.WithLogger(log))
	return d, nil
}

func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
