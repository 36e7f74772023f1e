//go:build integration

// Package integration starts the containers the integration tests run against.
package integration

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type Env struct {
	PG        *postgres.PostgresContainer
	Redis     *tcredis.RedisContainer
	Kafka     *kafka.KafkaContainer
	PGURL     string
	RedisAddr string
	KAddr     []string
}

type Option func(*options)

type options struct{ kafka bool }

// WithKafka also starts a single-node broker.
func WithKafka() Option { return func(o *options) { o.kafka = true } }

func Setup(ctx context.Context, opts ...Option) (*Env, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	env := &Env{}
	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("reservations"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, err
	}
	env.PG = pgC
	if env.PGURL, err = pgC.ConnectionString(ctx, "sslmode=disable"); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	redisC, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		env.Teardown(context.Background())
		return nil, err
	}
	env.Redis = redisC
	if env.RedisAddr, err = redisC.Endpoint(ctx, ""); err != nil {
		env.Teardown(context.Background())
		return nil, err
	}

	if o.kafka {
		kafkaC, err := kafka.Run(ctx,
			"confluentinc/confluent-local:7.5.0",
			kafka.WithClusterID("reservations-test"),
		)
		if err != nil {
			env.Teardown(context.Background())
			return nil, err
		}
		env.Kafka = kafkaC
		if env.KAddr, err = kafkaC.Brokers(ctx); err != nil {
			env.Teardown(context.Background())
			return nil, err
		}
	}
	return env, nil
}

func (e *Env) Teardown(ctx context.Context) {
	if e.Kafka != nil {
		_ = testcontainers.TerminateContainer(e.Kafka, testcontainers.StopContext(ctx))
	}
	if e.Redis != nil {
		_ = testcontainers.TerminateContainer(e.Redis, testcontainers.StopContext(ctx))
	}
	if e.PG != nil {
		_ = testcontainers.TerminateContainer(e.PG, testcontainers.StopContext(ctx))
	}
}
