package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/livemart/livemart-backend/internal/cron"
	"github.com/livemart/livemart-backend/internal/notifications"
	"github.com/livemart/livemart-backend/internal/orders"
	"github.com/livemart/livemart-backend/pkg/bootstrap"
	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/migrate"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/redis"
)

func main() {
	cfg, logg := bootstrap.Load("cron-worker")
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	bootstrap.Must(ctx, logg, "database", err)
	defer bootstrap.Close(ctx, logg, "database", dbClient.Close)

	bootstrap.Must(ctx, logg, "dev migrations", migrate.ApplyOnBoot(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	bootstrap.Must(ctx, logg, "redis", err)
	defer bootstrap.Close(ctx, logg, "redis", redisClient.Close)

	// the lock outlives a single tick so a slow run is not overlapped
	lock, err := cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), 2*cfg.Cron.Interval)
	bootstrap.Must(ctx, logg, "cron lock", err)

	jobs, err := buildRegistry(cfg, logg, dbClient)
	bootstrap.Must(ctx, logg, "cron jobs", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	bootstrap.Must(ctx, logg, "cron service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = bootstrap.Context(runCtx, logg, cfg)
	logg.Info(runCtx, "starting cron worker")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return service.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	nudge, err := cron.NewOrderNudgeJob(cron.OrderNudgeJobParams{
		Logger:        logg,
		DB:            dbClient,
		PendingReader: orders.NewRepository(dbClient.DB()),
		Outbox:        outbox.NewService(outboxRepo, logg),
		PendingDays:   cfg.Cron.PendingNudgeDays,
	})
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		RetentionDays: cfg.Cron.OutboxRetentionDays,
	}, outboxRepo)
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.RetentionJobParams{
		Logger:        logg,
		DB:            dbClient,
		RetentionDays: cfg.Cron.NotificationRetentionDays,
	}, notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(nudge, outboxRetention, notificationCleanup)
}
