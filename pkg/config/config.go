package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App               AppConfig
	Service           ServiceConfig
	DB                DBConfig
	Redis             RedisConfig
	JWT               JWTConfig
	CheckoutRateLimit CheckoutRateLimitConfig
	FeatureFlags      FeatureFlagsConfig
	Eventing          EventingConfig
	GCP               GCPConfig
	PubSub            PubSubConfig
	BigQuery          BigQueryConfig
	Stripe            StripeConfig
	Sendgrid          SendgridConfig
	Twilio            TwilioConfig
	Outbox            OutboxConfig
	Orders            OrdersConfig
	Cron              CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIVEMART_APP_ENV" required:"true"`
	Port         string `envconfig:"LIVEMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIVEMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIVEMART_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LIVEMART_LOG_FORMAT" default:"json"`
	CORSOrigins  string `envconfig:"LIVEMART_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

type ServiceConfig struct {
	Kind string `envconfig:"LIVEMART_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background processes expose /metrics. Empty disables it.
	MetricsAddr string `envconfig:"LIVEMART_METRICS_ADDR"`
}

type DBConfig struct {
	DSN       string        `envconfig:"LIVEMART_DB_DSN"`
	SlowQuery time.Duration `envconfig:"LIVEMART_DB_SLOW_QUERY" default:"500ms"`

	LegacyHost     string `envconfig:"LIVEMART_DB_HOST"`
	LegacyPort     int    `envconfig:"LIVEMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIVEMART_DB_USER"`
	LegacyPassword string `envconfig:"LIVEMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIVEMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIVEMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIVEMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIVEMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIVEMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIVEMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIVEMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIVEMART_REDIS_ADDR"`
	Password     string        `envconfig:"LIVEMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIVEMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIVEMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIVEMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIVEMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIVEMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIVEMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies bearer tokens minted by the external auth service.
type JWTConfig struct {
	Secret            string `envconfig:"LIVEMART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LIVEMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LIVEMART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CheckoutRateLimitConfig struct {
	Window    time.Duration `envconfig:"LIVEMART_CHECKOUT_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"LIVEMART_CHECKOUT_RATE_LIMIT_USER_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LIVEMART_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL  time.Duration `envconfig:"LIVEMART_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookIdempotencyTTL time.Duration `envconfig:"LIVEMART_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LIVEMART_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"LIVEMART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LIVEMART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"LIVEMART_PUBSUB_ORDERS_TOPIC" required:"true"`
	OrdersSubscription       string `envconfig:"LIVEMART_PUBSUB_ORDERS_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"LIVEMART_PUBSUB_ANALYTICS_SUBSCRIPTION"`
	NotificationTopic        string `envconfig:"LIVEMART_PUBSUB_NOTIFICATION_TOPIC" default:"lm-notification-events"`
	NotificationSubscription string `envconfig:"LIVEMART_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset         string `envconfig:"LIVEMART_BIGQUERY_DATASET" default:"livemart"`
	OrderFactsTable string `envconfig:"LIVEMART_BIGQUERY_ORDER_FACTS_TABLE" default:"order_facts"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LIVEMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LIVEMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LIVEMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"LIVEMART_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"LIVEMART_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"LIVEMART_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SendgridConfig struct {
	APIKey      string `envconfig:"LIVEMART_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"LIVEMART_SENDGRID_FROM_EMAIL" default:"orders@livemart.app"`
	FromName    string `envconfig:"LIVEMART_SENDGRID_FROM_NAME" default:"LiveMart"`
}

type TwilioConfig struct {
	AccountSID string `envconfig:"LIVEMART_TWILIO_ACCOUNT_SID"`
	AuthToken  string `envconfig:"LIVEMART_TWILIO_AUTH_TOKEN"`
	FromNumber string `envconfig:"LIVEMART_TWILIO_FROM_NUMBER"`
}

// OrdersConfig tunes order construction and payment reconciliation.
type OrdersConfig struct {
	DedupWindow         time.Duration `envconfig:"LIVEMART_ORDERS_DEDUP_WINDOW" default:"5m"`
	DefaultDeliveryDays int           `envconfig:"LIVEMART_ORDERS_DEFAULT_DELIVERY_DAYS" default:"3"`
	NotifyTimeout       time.Duration `envconfig:"LIVEMART_ORDERS_NOTIFY_TIMEOUT" default:"15s"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"LIVEMART_CRON_INTERVAL" default:"1h"`
	PendingNudgeDays          int           `envconfig:"LIVEMART_CRON_PENDING_NUDGE_DAYS" default:"2"`
	OutboxRetentionDays       int           `envconfig:"LIVEMART_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	NotificationRetentionDays int           `envconfig:"LIVEMART_CRON_NOTIFICATION_RETENTION_DAYS" default:"30"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
