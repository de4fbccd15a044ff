package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/livemart/livemart-backend/api/controllers"
	"github.com/livemart/livemart-backend/api/routes"
	"github.com/livemart/livemart-backend/internal/catalog"
	"github.com/livemart/livemart-backend/internal/feedback"
	"github.com/livemart/livemart-backend/internal/inventory"
	"github.com/livemart/livemart-backend/internal/notifications"
	"github.com/livemart/livemart-backend/internal/orders"
	"github.com/livemart/livemart-backend/internal/payments"
	"github.com/livemart/livemart-backend/internal/users"
	"github.com/livemart/livemart-backend/pkg/bootstrap"
	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/db"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/mailer"
	"github.com/livemart/livemart-backend/pkg/metrics"
	"github.com/livemart/livemart-backend/pkg/migrate"
	"github.com/livemart/livemart-backend/pkg/outbox"
	"github.com/livemart/livemart-backend/pkg/outbox/idempotency"
	"github.com/livemart/livemart-backend/pkg/redis"
	"github.com/livemart/livemart-backend/pkg/sms"
	pkgstripe "github.com/livemart/livemart-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, logg := bootstrap.Load("api")
	ctx := context.Background()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	bootstrap.Must(ctx, logg, "database", err)
	defer bootstrap.Close(ctx, logg, "database", dbClient.Close)

	bootstrap.Must(ctx, logg, "dev migrations", migrate.ApplyOnBoot(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	bootstrap.Must(ctx, logg, "redis", err)
	defer bootstrap.Close(ctx, logg, "redis", redisClient.Close)

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient)
	bootstrap.Must(ctx, logg, "service wiring", err)

	// PORT wins when the platform assigns one.
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithField(bootstrap.Context(ctx, logg, cfg), "addr", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildDependencies(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Dependencies, error) {
	gormDB := dbClient.DB()
	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	sink := notifications.NewOutboxSink(dbClient, outboxService)

	usersRepo := users.NewRepository(gormDB)
	usersService, err := users.NewService(usersRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	ordersRepo := orders.NewRepository(gormDB)

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Logger:   logg,
		Mailer:   mailer.New(cfg.Sendgrid, logg),
		SMS:      sms.New(cfg.Twilio, logg),
		Contacts: usersService,
		Flags:    ordersRepo,
		Runner:   notifications.AsyncRunner(logg, cfg.Orders.NotifyTimeout),
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	restockService, err := notifications.NewRestockService(notifications.RestockServiceParams{
		Logger:     logg,
		DB:         dbClient,
		Requests:   notifications.NewRequestRepository(gormDB),
		Outbox:     outboxService,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Logger:  logg,
		DB:      dbClient,
		Repo:    catalog.NewRepository(gormDB),
		Sellers: usersService,
		Restock: restockService,
		Sink:    sink,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	ordersService, err := orders.NewService(orders.ServiceParams{
		Logger:       logg,
		DB:           dbClient,
		Repo:         ordersRepo,
		Inventory:    inventory.NewService(orderMetrics),
		Purchases:    usersRepo,
		Sink:         sink,
		Dispatcher:   dispatcher,
		Metrics:      orderMetrics,
		DeliveryDays: cfg.Orders.DefaultDeliveryDays,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	feedbackService, err := feedback.NewService(feedback.ServiceParams{
		Logger: logg,
		DB:     dbClient,
		Repo:   feedback.NewRepository(gormDB),
		Sink:   sink,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	inbox, err := notifications.NewInbox(notifications.NewRepository(gormDB))
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps := routes.Dependencies{
		Catalog:       catalogService,
		Orders:        ordersService,
		Notifications: inbox,
		Restock:       restockService,
		Users:         usersService,
		Feedback:      feedbackService,
		Redis:         redisClient,
		Pingers: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
		Gatherer:    prometheus.DefaultGatherer,
		HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		// Cash-on-delivery keeps working; the payment routes answer 500.
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "stripe disabled, payment routes unavailable")
		return deps, nil
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Logger:      logg,
		Sessions:    stripeClient,
		Orders:      ordersService,
		Metrics:     orderMetrics,
		DedupWindow: cfg.Orders.DedupWindow,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	guard, err := idempotency.NewGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL)
	if err != nil {
		return routes.Dependencies{}, err
	}

	deps.Payments = paymentsService
	deps.StripeEvents = paymentsService
	deps.StripeClient = stripeClient
	deps.WebhookGuard = guard.For("stripe-webhook")
	return deps, nil
}
