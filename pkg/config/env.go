package config

// EnvPrefix namespaces every variable read by envconfig.
const EnvPrefix = "CONTRIB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

const (
	EnvAppEnv               = "CONTRIB_APP_ENV"
	EnvPort                 = "CONTRIB_APP_PORT"
	EnvDBDSN                = "CONTRIB_DB_DSN"
	EnvDBDriver             = "CONTRIB_DB_DRIVER"
	EnvDBHost               = "CONTRIB_DB_HOST"
	EnvDBUser               = "CONTRIB_DB_USER"
	EnvDBName               = "CONTRIB_DB_NAME"
	EnvDBPassword           = "CONTRIB_DB_PASSWORD"
	EnvRedisURL             = "CONTRIB_REDIS_URL"
	EnvJWTSecret            = "CONTRIB_JWT_SECRET"
	EnvPaystackSecretKey    = "CONTRIB_PAYSTACK_SECRET_KEY"
	EnvPaymentsCacheBackend = "CONTRIB_PAYMENTS_CACHE_BACKEND"
	EnvPaymentsCallbackURL  = "CONTRIB_PAYMENTS_CALLBACK_URL"
	EnvReconcileStaleAfter  = "CONTRIB_RECONCILE_STALE_AFTER"
	EnvClientAPIURL         = "CONTRIB_CLIENT_API_URL"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
