package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kioskpos/pos-backend/internal/cron"
	"github.com/kioskpos/pos-backend/internal/inventory"
	"github.com/kioskpos/pos-backend/pkg/config"
	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/instance"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/metrics"
	"github.com/kioskpos/pos-backend/pkg/migrate"
	"github.com/kioskpos/pos-backend/pkg/outbox"
	"github.com/kioskpos/pos-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg := logger.New(logger.Options{ServiceName: serviceName})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return 1
	}
	cfg.Service.Kind = serviceName
	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceName,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return 1
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return 1
	}

	lock, closeLock, err := newLock(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		return 1
	}
	defer closeWith(ctx, logg, "redis", closeLock)

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		return 1
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:      logg,
		Registry:    registry,
		Lock:        lock,
		Metrics:     metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:    cfg.Cron.Interval,
		Concurrency: cfg.Cron.Concurrency,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		return 1
	}

	if cfg.Cron.MetricsAddr != "" {
		srv := metricsServer(cfg.Cron.MetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logg.Error(ctx, "metrics listener failed", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return 0
}

// newLock prefers a redis lease shared by every worker and falls back to a
// process-local lock when redis is not configured.
func newLock(ctx context.Context, cfg *config.Config, logg *logger.Logger) (cron.Lock, func() error, error) {
	noop := func() error { return nil }
	if !cfg.Redis.Enabled() {
		logg.Warn(ctx, "redis not configured; cron lock is process-local")
		return &cron.LocalLock{}, noop, nil
	}
	client, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, noop, err
	}
	scope := cfg.App.Env
	if scope == "" {
		scope = "local"
	}
	lock, err := cron.NewRedisLock(client, client.LockKey("cron:"+scope), cfg.Cron.LockTTL)
	if err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	return lock, client.Close, nil
}

func metricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
		BatchSize:   cfg.Outbox.RetentionBatch,
	})
	if err != nil {
		return nil, err
	}

	ledger, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		Inventory: ledger,
		Metrics:   metrics.NewOrderMetrics(prometheus.DefaultRegisterer),
		Limit:     cfg.Inventory.LowStockSweepLimit,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(retention, lowStock)
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "error closing "+name, err)
	}
}
