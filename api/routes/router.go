package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livemart/livemart-backend/api/controllers"
	ordercontrollers "github.com/livemart/livemart-backend/api/controllers/orders"
	paymentcontrollers "github.com/livemart/livemart-backend/api/controllers/payments"
	webhookcontrollers "github.com/livemart/livemart-backend/api/controllers/webhooks"
	"github.com/livemart/livemart-backend/api/middleware"
	"github.com/livemart/livemart-backend/pkg/config"
	"github.com/livemart/livemart-backend/pkg/enums"
	"github.com/livemart/livemart-backend/pkg/logger"
	"github.com/livemart/livemart-backend/pkg/metrics"
	pkgredis "github.com/livemart/livemart-backend/pkg/redis"
)

// RedisStore is the subset of the redis client the HTTP layer needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	controllers.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

type stripeClient interface {
	SigningSecret() string
}

type webhookGuard interface {
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

// Dependencies are the services mounted by NewRouter. Readiness pings every
// non-nil entry of Pingers.
type Dependencies struct {
	Catalog       controllers.CatalogService
	Orders        ordercontrollers.Service
	Payments      paymentcontrollers.Verifier
	StripeEvents  webhookcontrollers.StripeWebhookService
	StripeClient  stripeClient
	WebhookGuard  webhookGuard
	Notifications controllers.NotificationInbox
	Restock       controllers.RestockSubscriber
	Users         controllers.AccountService
	Feedback      controllers.FeedbackService
	Redis         RedisStore
	Pingers       map[string]controllers.Pinger
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
}

var sellerRoles = []enums.Role{enums.RoleRetailer, enums.RoleWholesaler}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy(
		"checkout",
		cfg.CheckoutRateLimit.Window,
		cfg.CheckoutRateLimit.UserLimit,
	)
	var limiter middleware.FixedWindowLimiter
	var idemStore pkgredis.IdempotencyStore
	if deps.Redis != nil {
		limiter = deps.Redis
		idemStore = deps.Redis
	}
	checkoutLimit := middleware.RateLimit(checkoutPolicy, limiter, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Stripe authenticates with its signature header, not a bearer token.
	r.Post("/api/payments/webhook", webhookcontrollers.StripeWebhook(deps.StripeEvents, deps.StripeClient, deps.WebhookGuard, logg))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))
			r.Get("/products", controllers.ListProducts(deps.Catalog, logg))
			r.Get("/products/categories", controllers.ProductCategories(deps.Catalog, logg))
			r.Get("/products/proxy/{retailerId}", controllers.ProxyProducts(deps.Catalog, logg))
			r.Get("/products/{productId}", controllers.GetProduct(deps.Catalog, logg))
			r.Get("/feedback/product/{productId}", controllers.ProductFeedback(deps.Feedback, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(idemStore, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, sellerRoles...))
				r.Post("/products", controllers.CreateProduct(deps.Catalog, logg))
				r.Put("/products/{productId}", controllers.UpdateProduct(deps.Catalog, logg))
				r.Delete("/products/{productId}", controllers.DeleteProduct(deps.Catalog, logg))
				r.Put("/orders/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
				r.Put("/orders/{orderId}/payment", ordercontrollers.UpdatePayment(deps.Orders, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRoles(logg, enums.RoleCustomer))
				r.With(checkoutLimit).Post("/orders", ordercontrollers.PlaceOrder(deps.Orders, logg))
				r.With(checkoutLimit).Post("/payments/verify-payment", paymentcontrollers.VerifyPayment(deps.Payments, logg))
				r.Post("/notifications/subscribe", controllers.SubscribeRestock(deps.Restock, logg))
			})

			r.Get("/shops/nearby", controllers.NearbyShops(deps.Catalog, logg))
			r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
			r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Get("/notifications", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/notifications/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/notifications/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Get("/users/purchase-history", controllers.PurchaseHistory(deps.Users, logg))
			r.Get("/users/profile", controllers.GetProfile(deps.Users, logg))
			r.Put("/users/profile", controllers.UpdateProfile(deps.Users, logg))
			r.Get("/users/browsing-history", controllers.BrowsingHistory(deps.Users, logg))
			r.Post("/users/browsing-history", controllers.RecordBrowsing(deps.Users, logg))
			r.Post("/feedback", controllers.SubmitFeedback(deps.Feedback, logg))
			r.Get("/feedback", controllers.ListFeedback(deps.Feedback, logg))
			r.Get("/feedback/order/{orderId}", controllers.OrderFeedback(deps.Feedback, logg))
		})
	})

	return r
}
