package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Paystack  PaystackConfig
	Payments  PaymentsConfig
	Reconcile ReconcileConfig
	FX        FXConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"CONTRIB_APP_ENV" required:"true"`
	Port         string   `envconfig:"CONTRIB_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"CONTRIB_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CONTRIB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"CONTRIB_CORS_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CONTRIB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CONTRIB_DB_DSN"`
	Driver string `envconfig:"CONTRIB_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CONTRIB_DB_HOST"`
	Port     int    `envconfig:"CONTRIB_DB_PORT" default:"5432"`
	User     string `envconfig:"CONTRIB_DB_USER"`
	Password string `envconfig:"CONTRIB_DB_PASSWORD"`
	Name     string `envconfig:"CONTRIB_DB_NAME"`
	SSLMode  string `envconfig:"CONTRIB_DB_SSLMODE" default:"disable"`

	AutoMigrate     bool          `envconfig:"CONTRIB_AUTO_MIGRATE" default:"false"`
	MaxOpenConns    int           `envconfig:"CONTRIB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CONTRIB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CONTRIB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CONTRIB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the configured driver targets SQLite (local/dev only).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CONTRIB_REDIS_URL"`
	Address      string        `envconfig:"CONTRIB_REDIS_ADDR"`
	Password     string        `envconfig:"CONTRIB_REDIS_PASSWORD"`
	DB           int           `envconfig:"CONTRIB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CONTRIB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CONTRIB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CONTRIB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CONTRIB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CONTRIB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

// JWTConfig verifies bearer tokens minted by the hosted auth layer.
type JWTConfig struct {
	Secret   string `envconfig:"CONTRIB_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"CONTRIB_JWT_ISSUER"`
	Audience string `envconfig:"CONTRIB_JWT_AUDIENCE"`
}

type PaystackConfig struct {
	SecretKey string        `envconfig:"CONTRIB_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL   string        `envconfig:"CONTRIB_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	Timeout   time.Duration `envconfig:"CONTRIB_PAYSTACK_TIMEOUT" default:"15s"`
}

type PaymentsConfig struct {
	Currency        string        `envconfig:"CONTRIB_PAYMENTS_CURRENCY" default:"GHS"`
	CallbackURL     string        `envconfig:"CONTRIB_PAYMENTS_CALLBACK_URL"`
	VerifyTimeout   time.Duration `envconfig:"CONTRIB_PAYMENTS_VERIFY_TIMEOUT" default:"10s"`
	CacheTTL        time.Duration `envconfig:"CONTRIB_PAYMENTS_CACHE_TTL" default:"5m"`
	CacheBackend    string        `envconfig:"CONTRIB_PAYMENTS_CACHE_BACKEND" default:"memory"`
	RateLimitWindow time.Duration `envconfig:"CONTRIB_PAYMENTS_RATE_LIMIT_WINDOW" default:"1m"`
	RateLimitPerIP  int           `envconfig:"CONTRIB_PAYMENTS_RATE_LIMIT_PER_IP" default:"60"`
	RateLimitPerRef int           `envconfig:"CONTRIB_PAYMENTS_RATE_LIMIT_PER_REFERENCE" default:"30"`
}

func (p PaymentsConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.CacheBackend)) {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendNone:
	default:
		return fmt.Errorf("%s must be one of memory, redis, none", EnvPaymentsCacheBackend)
	}
	if p.CallbackURL != "" {
		if _, err := url.ParseRequestURI(p.CallbackURL); err != nil {
			return fmt.Errorf("%s is not a valid url: %w", EnvPaymentsCallbackURL, err)
		}
	}
	return nil
}

type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"CONTRIB_RECONCILE_INTERVAL" default:"15m"`
	StaleAfter time.Duration `envconfig:"CONTRIB_RECONCILE_STALE_AFTER" default:"30m"`
	BatchSize  int           `envconfig:"CONTRIB_RECONCILE_BATCH_SIZE" default:"100"`
}

type FXConfig struct {
	FallbackRate float64       `envconfig:"CONTRIB_FX_FALLBACK_GHS_PER_USD" default:"12.5"`
	MinRate      float64       `envconfig:"CONTRIB_FX_MIN_GHS_PER_USD" default:"5"`
	MaxRate      float64       `envconfig:"CONTRIB_FX_MAX_GHS_PER_USD" default:"30"`
	Timeout      time.Duration `envconfig:"CONTRIB_FX_TIMEOUT" default:"4s"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
