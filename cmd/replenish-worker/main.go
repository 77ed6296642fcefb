package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/natecorreia/tillpoint-backend/internal/replenishment"
	"github.com/natecorreia/tillpoint-backend/pkg/config"
	"github.com/natecorreia/tillpoint-backend/pkg/db"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/metrics"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/pubsub"
	"github.com/natecorreia/tillpoint-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "replenish-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "replenish-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	// The worker needs the subscription up front; it cannot do useful work
	// without one.
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, true, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	var dedupe dedupeStore
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "redis unavailable, event dedupe disabled")
	} else {
		dedupe = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	posMetrics := metrics.NewPOSMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	replenishmentService, err := replenishment.NewService(replenishment.NewRepository(dbClient.DB()), dbClient, outboxService, cfg.Replenishment, posMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create replenishment service", err)
		os.Exit(1)
	}

	worker, err := NewWorker(replenishmentService, dedupe, posMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create worker", err)
		os.Exit(1)
	}

	logg.Info(logg.WithField(ctx, "subscription", cfg.PubSub.StockSubscription), "replenish worker starting")

	if err := worker.Run(ctx, pubsubClient.StockSubscription()); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "replenish worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(context.Background(), "replenish worker shut down")
}
