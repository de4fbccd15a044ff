package config

const (
	EnvPrefix = "LIVEMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "LIVEMART_APP_ENV"
	EnvPort     = "LIVEMART_APP_PORT"
	EnvLogLevel = "LIVEMART_LOG_LEVEL"

	EnvDBDSN  = "LIVEMART_DB_DSN"
	EnvDBHost = "LIVEMART_DB_HOST"
	EnvDBPort = "LIVEMART_DB_PORT"
	EnvDBUser = "LIVEMART_DB_USER"
	EnvDBName = "LIVEMART_DB_NAME"

	EnvRedisURL = "LIVEMART_REDIS_URL"

	EnvJWTSecret  = "LIVEMART_JWT_SECRET"
	EnvJWTIssuer  = "LIVEMART_JWT_ISSUER"
	EnvJWTExpMins = "LIVEMART_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "LIVEMART_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic = "LIVEMART_PUBSUB_ORDERS_TOPIC"
	EnvPubSubOrdersSub   = "LIVEMART_PUBSUB_ORDERS_SUBSCRIPTION"

	EnvOrdersDedupWindow = "LIVEMART_ORDERS_DEDUP_WINDOW"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
