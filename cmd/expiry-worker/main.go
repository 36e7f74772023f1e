package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dmehra2102/stock-reservation-system/internal/bootstrap"
	expiryapp "github.com/dmehra2102/stock-reservation-system/internal/expiry/application"
	inventoryapp "github.com/dmehra2102/stock-reservation-system/internal/inventory/application"
	reservationapp "github.com/dmehra2102/stock-reservation-system/internal/reservation/application"
	"github.com/dmehra2102/stock-reservation-system/pkg/config"
	"github.com/dmehra2102/stock-reservation-system/pkg/logging"
	"github.com/dmehra2102/stock-reservation-system/pkg/shutdown"
	"github.com/dmehra2102/stock-reservation-system/pkg/tracing"
)

func main() {
	cfg, err := config.Load("expiry-worker")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)
	if cfg.StoreDriver != config.DriverPostgres {
		log.Error("expiry-worker needs shared state; set STORE_DRIVER=postgres", "driver", cfg.StoreDriver)
		os.Exit(1)
	}

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

	coordinator := expiryapp.NewCoordinator(log, deps.Notifier, deps.Queue)
	reservations := reservationapp.NewService(log, deps.Store, inventoryapp.NewLedger(log), coordinator)
	reconciler := expiryapp.NewReconciler(log, deps.Notifier, reservations)
	worker := expiryapp.NewWorker(log, deps.Queue, reconciler, expiryapp.WorkerConfig{
		Interval:    cfg.WorkerPoll,
		BatchSize:   cfg.WorkerBatch,
		MaxAttempts: cfg.WorkerMaxAttempts,
		RetryDelay:  cfg.WorkerRetryDelay,
	})

	if err := worker.Run(ctx); err != nil {
		log.Error("expiry worker stopped", "err", err)
	}

	shutdown.Drain(log, 5*time.Second, tp.Shutdown)
	log.Info("expiry-worker shutdown")
}
