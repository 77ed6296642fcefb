package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/natecorreia/tillpoint-backend/api/routes"
	"github.com/natecorreia/tillpoint-backend/internal/catalog"
	checkoutsvc "github.com/natecorreia/tillpoint-backend/internal/checkout"
	"github.com/natecorreia/tillpoint-backend/internal/ledger"
	"github.com/natecorreia/tillpoint-backend/internal/replenishment"
	"github.com/natecorreia/tillpoint-backend/pkg/config"
	"github.com/natecorreia/tillpoint-backend/pkg/db"
	"github.com/natecorreia/tillpoint-backend/pkg/logger"
	"github.com/natecorreia/tillpoint-backend/pkg/metrics"
	"github.com/natecorreia/tillpoint-backend/pkg/migrate"
	"github.com/natecorreia/tillpoint-backend/pkg/outbox"
	"github.com/natecorreia/tillpoint-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	posMetrics := metrics.NewPOSMetrics(registry)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	taxRate, err := cfg.Checkout.Rate()
	if err != nil {
		logg.Error(context.Background(), "invalid checkout tax rate", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, outboxService, posMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.NewRepository(dbClient.DB()), dbClient, ledgerService, outboxService, taxRate, posMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	replenishmentService, err := replenishment.NewService(replenishment.NewRepository(dbClient.DB()), dbClient, outboxService, cfg.Replenishment, posMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create replenishment service", err)
		os.Exit(1)
	}

	// Low-stock drafting reacts to committed ledger writes in-process; the
	// queue worker covers the same events for out-of-process consumers.
	ledger.RegisterStockChangedHandler(ledgerService, replenishmentService)

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			Gatherer:      registry,
			Catalog:       catalogService,
			Ledger:        ledgerService,
			Checkout:      checkoutService,
			Replenishment: replenishmentService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
