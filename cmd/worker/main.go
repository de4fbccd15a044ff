package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/livemart/livemart-backend/internal/analytics"
	"github.com/livemart/livemart-backend/internal/notifications"
	"github.com/livemart/livemart-backend/pkg/bigquery"
	"github.com/livemart/livemart-backend/pkg/bootstrap"
	"github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/outbox/idempotency"
	"github.com/livemart/livemart-backend/pkg/pubsub"
	"github.com/livemart/livemart-backend/pkg/redis"
)

func main() {
	cfg, logg := bootstrap.Load("worker")
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	bootstrap.Must(ctx, logg, "database", err)
	defer bootstrap.Close(ctx, logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	bootstrap.Must(ctx, logg, "redis", err)
	defer bootstrap.Close(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, pubsub.Options{
		Subscriptions: []string{
			cfg.PubSub.OrdersSubscription,
			cfg.PubSub.NotificationSubscription,
			cfg.PubSub.AnalyticsSubscription,
		},
	}, logg)
	bootstrap.Must(ctx, logg, "pubsub", err)
	defer bootstrap.Close(ctx, logg, "pubsub", pubsubClient.Close)

	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	bootstrap.Must(ctx, logg, "idempotency guard", err)

	notificationRepo := notifications.NewRepository(dbClient.DB())
	runners := map[string]runner{}
	pingers := map[string]pinger{
		"database": dbClient.Ping,
		"redis":    redisClient.Ping,
		"pubsub":   pubsubClient.Ping,
	}

	ordersSub := pubsubClient.Subscriber(cfg.PubSub.OrdersSubscription)
	if ordersSub == nil {
		bootstrap.Must(ctx, logg, "orders subscription", errors.New("subscription not configured"))
	}
	orderConsumer, err := notifications.NewConsumer(notificationRepo, ordersSub, guard, logg)
	bootstrap.Must(ctx, logg, "order notifications consumer", err)
	runners["order-notifications"] = orderConsumer

	if restockSub := pubsubClient.Subscriber(cfg.PubSub.NotificationSubscription); restockSub != nil {
		restockConsumer, err := notifications.NewConsumer(notificationRepo, restockSub, guard, logg)
		bootstrap.Must(ctx, logg, "restock notifications consumer", err)
		runners["restock-notifications"] = restockConsumer
	} else {
		logg.Warn(ctx, "notification subscription not configured, restock in-app notifications disabled")
	}

	if analyticsSub := pubsubClient.Subscriber(cfg.PubSub.AnalyticsSubscription); analyticsSub != nil {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		bootstrap.Must(ctx, logg, "bigquery", err)
		defer bootstrap.Close(ctx, logg, "bigquery", bqClient.Close)
		pingers["bigquery"] = bqClient.Ping

		factWriter, err := analytics.NewWriter(bqClient, analytics.WriterConfig{Table: cfg.BigQuery.OrderFactsTable})
		bootstrap.Must(ctx, logg, "order facts writer", err)
		factConsumer, err := analytics.NewConsumer(analyticsSub, factWriter, guard, logg)
		bootstrap.Must(ctx, logg, "order facts consumer", err)
		runners["order-facts"] = factConsumer
	} else {
		logg.Warn(ctx, "analytics subscription not configured, order facts disabled")
	}

	if addr := cfg.Service.MetricsAddr; addr != "" {
		runners["metrics"] = runFunc(func(ctx context.Context) error {
			return metrics.Serve(ctx, addr, prometheus.DefaultGatherer, logg)
		})
	}

	service, err := NewService(ServiceParams{Logger: logg, Pingers: pingers, Runners: runners})
	bootstrap.Must(ctx, logg, "worker service", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = bootstrap.Context(runCtx, logg, cfg)
	logg.Info(runCtx, "starting worker")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shutting down gracefully")
}
