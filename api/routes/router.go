package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/contributions-backend/api/controllers"
	"github.com/angelmondragon/contributions-backend/api/middleware"
	"github.com/angelmondragon/contributions-backend/internal/contributions"
	"github.com/angelmondragon/contributions-backend/pkg/config"
	"github.com/angelmondragon/contributions-backend/pkg/db"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/contributions-backend/pkg/redis"
)

// RedisStore is the slice of pkg/redis the router needs. Pass a nil interface when
// Redis is disabled; rate limiting and idempotency then become no-ops.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisStore RedisStore,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
	contributionService contributions.Service,
	initializer controllers.PaymentInitializer,
	verifier controllers.PaymentVerifier,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idemStore  pkgredis.IdempotencyStore
		limitStore interface {
			FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
		}
		redisPinger controllers.Pinger
	)
	if redisStore != nil {
		idemStore = redisStore
		limitStore = redisStore
		redisPinger = redisStore
	}

	verifyPolicy := middleware.NewRateLimitPolicy(
		"verify-payment",
		cfg.Payments.RateLimitWindow,
		cfg.Payments.RateLimitPerIP,
		cfg.Payments.RateLimitPerRef,
	)
	initializePolicy := middleware.NewRateLimitPolicy(
		"initialize-payment",
		cfg.Payments.RateLimitWindow,
		cfg.Payments.RateLimitPerIP,
		cfg.Payments.RateLimitPerRef,
	)
	idempotent := middleware.Idempotency(idemStore, logg)

	deps := map[string]controllers.Pinger{
		"database": dbP,
		"redis":    redisPinger,
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})
	r.Method(http.MethodGet, "/metrics", controllers.Metrics(gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.With(idempotent).Post("/contributions", controllers.ContributionCreate(contributionService, logg))
		r.Get("/contributions/{reference}", controllers.ContributionFetch(contributionService, logg))
	})

	r.Route("/functions/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.With(
			middleware.RateLimit(initializePolicy, limitStore, logg),
			idempotent,
		).Post("/initialize-payment", controllers.InitializePayment(initializer, logg))
		r.With(
			middleware.RateLimit(verifyPolicy, limitStore, logg),
		).Post("/verify-payment", controllers.VerifyPayment(verifier, logg))
	})

	return r
}
