package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/livemart/livemart-backend/pkg/bootstrap"
	"github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/migrate"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/registry"
	"github.com/livemart/livemart-backend/pkg/pubsub"
)

func main() {
	cfg, logg := bootstrap.Load("outbox-publisher")
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	bootstrap.Must(ctx, logg, "database", err)
	defer bootstrap.Close(ctx, logg, "database", dbClient.Close)

	bootstrap.Must(ctx, logg, "dev migrations", migrate.ApplyOnBoot(ctx, cfg, logg, dbClient))

	router, err := registry.NewRouter(cfg.PubSub)
	bootstrap.Must(ctx, logg, "event router", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, pubsub.Options{Topics: router.Topics()}, logg)
	bootstrap.Must(ctx, logg, "pubsub", err)
	defer bootstrap.Close(ctx, logg, "pubsub", pubsubClient.Close)

	relay, err := NewRelay(RelayParams{
		Config: RelayConfig{
			BatchSize:    cfg.Outbox.BatchSize,
			MaxAttempts:  cfg.Outbox.MaxAttempts,
			PollInterval: time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond,
		},
		DB:      dbClient,
		Store:   outbox.NewRepository(dbClient.DB()),
		Router:  router,
		Sender:  pubsubSender{client: pubsubClient},
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Logger:  logg,
	})
	bootstrap.Must(ctx, logg, "outbox relay", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = bootstrap.Context(runCtx, logg, cfg)
	logg.Info(runCtx, "starting outbox publisher")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error { return relay.Run(groupCtx) })
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "outbox publisher shutting down gracefully")
}
