package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/stock-reservation-system/internal/payment/application"
	"github.com/dmehra2102/stock-reservation-system/internal/payment/domain"
	"github.com/dmehra2102/stock-reservation-system/pkg/idempotency"
	"github.com/dmehra2102/stock-reservation-system/pkg/tracing"
)

const maxBackoff = 30 * time.Second

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	log     *slog.Logger
	reader  MessageReader
	svc     *application.Service
	idem    *idempotency.Store
	tracer  trace.Tracer
	backoff time.Duration
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem *idempotency.Store) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return NewConsumerWithReader(log, r, svc, idem)
}

func NewConsumerWithReader(log *slog.Logger, reader MessageReader, svc *application.Service, idem *idempotency.Store) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		log:     log,
		reader:  reader,
		svc:     svc,
		idem:    idem,
		tracer:  otel.Tracer("payment-consumer"),
		backoff: 500 * time.Millisecond,
	}
}

// Run commits a message only once it reached a final outcome. When ctx ends
// while a payment is still failing, that message stays uncommitted and is
// redelivered to the next consumer.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			c.log.Info("consumer stopped before payment applied", "offset", msg.Offset)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// handle retries infrastructure failures until the payment applies or ctx
// ends; it returns an error only in the latter case.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	if eventType := tracing.HeaderValue(msg.Headers, "event_type"); eventType != "" && eventType != domain.EventProcessed {
		return nil
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	done, err := c.idem.Processed(ctx, key)
	if err != nil {
		c.log.Warn("idempotency check failed", "key", key, "err", err)
	}
	if done {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentProcessed")
	defer span.End()

	var ev domain.PaymentProcessed
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.ErrorContext(msgCtx, "unmarshal failed", "offset", msg.Offset, "err", err)
		return nil
	}

	for attempt := 1; ; attempt++ {
		err := c.svc.ApplyProcessed(msgCtx, ev)
		if err == nil {
			c.log.InfoContext(msgCtx, "payment applied", "order_id", ev.OrderID)
			break
		}
		if errors.Is(err, domain.ErrMalformedEvent) {
			c.log.ErrorContext(msgCtx, "payment event dropped", "offset", msg.Offset, "err", err)
			break
		}
		c.log.WarnContext(msgCtx, "payment apply failed", "order_id", ev.OrderID, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay(attempt)):
		}
	}

	if err := c.idem.MarkProcessed(ctx, key); err != nil {
		c.log.WarnContext(msgCtx, "idempotency mark failed", "key", key, "err", err)
	}
	return nil
}

func (c *Consumer) delay(attempt int) time.Duration {
	d := time.Duration(attempt) * c.backoff
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
