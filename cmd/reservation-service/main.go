package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/stock-reservation-system/internal/api"
	"github.com/dmehra2102/stock-reservation-system/internal/bootstrap"
	catalogapp "github.com/dmehra2102/stock-reservation-system/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/stock-reservation-system/internal/catalog/infrastructure/http"
	expiryapp "github.com/dmehra2102/stock-reservation-system/internal/expiry/application"
	inventoryapp "github.com/dmehra2102/stock-reservation-system/internal/inventory/application"
	invgrpc "github.com/dmehra2102/stock-reservation-system/internal/inventory/infrastructure/grpc"
	orderapp "github.com/dmehra2102/stock-reservation-system/internal/order/application"
	orderhttp "github.com/dmehra2102/stock-reservation-system/internal/order/infrastructure/http"
	paymentapp "github.com/dmehra2102/stock-reservation-system/internal/payment/application"
	paymentkafka "github.com/dmehra2102/stock-reservation-system/internal/payment/infrastructure/kafka"
	reservationapp "github.com/dmehra2102/stock-reservation-system/internal/reservation/application"
	reservationhttp "github.com/dmehra2102/stock-reservation-system/internal/reservation/infrastructure/http"
	"github.com/dmehra2102/stock-reservation-system/pkg/config"
	"github.com/dmehra2102/stock-reservation-system/pkg/idempotency"
	"github.com/dmehra2102/stock-reservation-system/pkg/logging"
	"github.com/dmehra2102/stock-reservation-system/pkg/outbox"
	"github.com/dmehra2102/stock-reservation-system/pkg/shutdown"
	"github.com/dmehra2102/stock-reservation-system/pkg/tracing"
)

func main() {
	cfg, err := config.Load("reservation-service")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	ctx, cancel := shutdown.WithSignals(context.Background(), log)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	deps, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		log.Error("backing services unavailable", "err", err)
		os.Exit(1)
	}
	defer deps.Close()

	ledger := inventoryapp.NewLedger(log)
	coordinator := expiryapp.NewCoordinator(log, deps.Notifier, deps.Queue)
	reservations := reservationapp.NewService(log, deps.Store, ledger, coordinator)
	orders := orderapp.NewService(log, deps.Store, reservations, cfg.HoldTTL)
	products := catalogapp.NewService(log, deps.Store)

	if cfg.SeedFile != "" {
		if err := seed(ctx, products, cfg.SeedFile); err != nil {
			log.Error("seed failed", "file", cfg.SeedFile, "err", err)
			os.Exit(1)
		}
	}

	// Outbox relay
	if cfg.KafkaAddr != "" {
		writer := &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(cfg.KafkaAddr, ",")...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		}
		defer func() { _ = writer.Close() }()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutTopic)
		relay := outbox.NewRelay(log, deps.Outbox, dispatch, cfg.ServiceName+"-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped", "err", err)
			}
		}()
	} else {
		log.Info("KAFKA_ADDR empty, outbox relay disabled")
	}

	if cfg.WorkerEmbedded {
		reconciler := expiryapp.NewReconciler(log, deps.Notifier, reservations)
		worker := expiryapp.NewWorker(log, deps.Queue, reconciler, expiryapp.WorkerConfig{
			Interval:    cfg.WorkerPoll,
			BatchSize:   cfg.WorkerBatch,
			MaxAttempts: cfg.WorkerMaxAttempts,
			RetryDelay:  cfg.WorkerRetryDelay,
		})
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.Error("expiry worker stopped", "err", err)
			}
		}()
	}

	var middlewares []func(http.Handler) http.Handler
	if deps.Redis != nil {
		idem := idempotency.NewStore(deps.Redis, cfg.IdempotencyTTL)
		middlewares = append(middlewares, idem.Middleware(log))

		if cfg.KafkaAddr != "" && cfg.PaymentTopic != "" {
			payments := paymentapp.NewService(log, orders)
			consumer := paymentkafka.NewConsumer(log, strings.Split(cfg.KafkaAddr, ","), cfg.PaymentTopic, cfg.ServiceName, payments, idem)
			go func() {
				if err := consumer.Run(ctx); err != nil {
					log.Error("payment consumer stopped", "err", err)
					cancel()
				}
			}()
		}
	}

	// gRPC health server
	gs, err := invgrpc.Run(ctx, cfg.GRPCAddr, invgrpc.NewServer(log, deps.Store))
	if err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}

	router := api.NewRouter(api.RouterConfig{Log: log, Health: deps.Store, Middlewares: middlewares},
		cataloghttp.NewHandler(log, products),
		reservationhttp.NewHandler(log, reservations, cfg.HoldTTL),
		orderhttp.NewHandler(log, orders),
	)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("reservation-service http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	shutdown.Drain(log, 10*time.Second,
		srv.Shutdown,
		func(context.Context) error { gs.GracefulStop(); return nil },
		tp.Shutdown,
	)
	log.Info("reservation-service shutdown")
}

func seed(ctx context.Context, products *catalogapp.Service, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = products.Seed(ctx, f)
	return err
}

