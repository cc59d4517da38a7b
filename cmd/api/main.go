package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/kioskpos/pos-backend/api/controllers"
	"github.com/kioskpos/pos-backend/api/routes"
	"github.com/kioskpos/pos-backend/internal/catalog"
	"github.com/kioskpos/pos-backend/internal/checkout"
	"github.com/kioskpos/pos-backend/internal/employees"
	"github.com/kioskpos/pos-backend/internal/inventory"
	"github.com/kioskpos/pos-backend/internal/loyalty"
	"github.com/kioskpos/pos-backend/internal/transactions"
	"github.com/kioskpos/pos-backend/pkg/config"
	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/instance"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/metrics"
	"github.com/kioskpos/pos-backend/pkg/migrate"
	"github.com/kioskpos/pos-backend/pkg/outbox"
	"github.com/kioskpos/pos-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"database": dbClient}
	closers := []func() error{dbClient.Close}

	deps := routes.Dependencies{
		Readiness: readiness,
		Metrics:   prometheus.DefaultGatherer,
	}

	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		readiness["redis"] = redisClient
		deps.IdempotencyStore = redisClient
		closers = append(closers, redisClient.Close)
	} else {
		logg.Warn(context.Background(), "redis not configured; idempotent replay disabled")
	}
	defer func() {
		if err := closeAll(closers); err != nil {
			logg.Error(context.Background(), "error releasing resources", err)
		}
	}()

	if err := wireServices(cfg, logg, dbClient, &deps); err != nil {
		logg.Error(context.Background(), "failed to create services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server shut down gracefully")
}

// wireServices builds the order pipeline on top of the shared connection.
func wireServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, deps *routes.Dependencies) error {
	conn := dbClient.DB()

	resolver, err := catalog.NewResolver(catalog.NewRepository(conn))
	if err != nil {
		return err
	}
	ledger, err := inventory.NewLedger(inventory.NewRepository(conn))
	if err != nil {
		return err
	}
	policy := loyalty.RedeemUnchecked
	if cfg.Loyalty.StrictRedemption() {
		policy = loyalty.RedeemCovered
	}
	account, err := loyalty.NewAccount(loyalty.NewRepository(conn), loyalty.Options{
		PointsPerUnit: cfg.Loyalty.PointsPerUnit,
		Policy:        policy,
	})
	if err != nil {
		return err
	}
	recorder, err := transactions.NewRecorder(transactions.NewRepository(conn))
	if err != nil {
		return err
	}
	directory, err := employees.NewDirectory(employees.NewRepository(conn))
	if err != nil {
		return err
	}

	svc, err := checkout.NewService(checkout.ServiceParams{
		DB:        dbClient,
		Catalog:   resolver,
		Inventory: ledger,
		Loyalty:   account,
		Recorder:  recorder,
		Employees: directory,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:   metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	deps.Checkout = svc
	deps.Transactions = recorder
	deps.Loyalty = account
	deps.Inventory = ledger
	return nil
}

func closeAll(closers []func() error) error {
	var err error
	for i := len(closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, closers[i]())
	}
	return err
}
