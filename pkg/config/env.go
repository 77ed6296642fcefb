package config

// EnvPrefix scopes every environment variable consumed by the service.
const EnvPrefix = "TILLPOINT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "TILLPOINT_APP_ENV"
	EnvPort     = "TILLPOINT_APP_PORT"
	EnvLogLevel = "TILLPOINT_LOG_LEVEL"

	EnvDBDSN  = "TILLPOINT_DB_DSN"
	EnvDBHost = "TILLPOINT_DB_HOST"
	EnvDBUser = "TILLPOINT_DB_USER"
	EnvDBName = "TILLPOINT_DB_NAME"

	EnvRedisURL  = "TILLPOINT_REDIS_URL"
	EnvJWTSecret = "TILLPOINT_JWT_SECRET"
	EnvJWTIssuer = "TILLPOINT_JWT_ISSUER"

	EnvTaxRate = "TILLPOINT_CHECKOUT_TAX_RATE"

	EnvGCPProjectID   = "TILLPOINT_GCP_PROJECT_ID"
	EnvPubSubStockSub = "TILLPOINT_PUBSUB_STOCK_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
