package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/contributions-backend/api/routes"
	"github.com/angelmondragon/contributions-backend/internal/contributions"
	"github.com/angelmondragon/contributions-backend/internal/payments"
	"github.com/angelmondragon/contributions-backend/pkg/config"
	"github.com/angelmondragon/contributions-backend/pkg/instance"
	"github.com/angelmondragon/contributions-backend/pkg/db"
	"github.com/angelmondragon/contributions-backend/pkg/logger"
	"github.com/angelmondragon/contributions-backend/pkg/metrics"
	"github.com/angelmondragon/contributions-backend/pkg/migrate"
	"github.com/angelmondragon/contributions-backend/pkg/paystack"
	"github.com/angelmondragon/contributions-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var (
		redisClient *redis.Client
		redisStore  routes.RedisStore
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		redisStore = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured; rate limiting and idempotency disabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	gateway, err := paystack.NewClient(
		cfg.Paystack.SecretKey,
		paystack.WithBaseURL(cfg.Paystack.BaseURL),
		paystack.WithTimeout(cfg.Paystack.Timeout),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	repo := contributions.NewRepository(dbClient.DB())
	contributionService, err := contributions.NewService(repo, contributions.NewProjectRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create contribution service", err)
		os.Exit(1)
	}

	initializer, err := payments.NewInitializer(payments.InitializerParams{
		Gateway:     gateway,
		Logger:      logg,
		Metrics:     paymentMetrics,
		CallbackURL: cfg.Payments.CallbackURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment initializer", err)
		os.Exit(1)
	}

	cache, err := verificationCache(cfg.Payments, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create verification cache", err)
		os.Exit(1)
	}
	verifier, err := payments.NewVerifier(payments.VerifierParams{
		Store:   repo,
		Gateway: gateway,
		Cache:   cache,
		Logger:  logg,
		Metrics: paymentMetrics,
		Timeout: cfg.Payments.VerifyTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"instance":      instance.GetID(),
		"cache_backend": cfg.Payments.CacheBackend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisStore,
			metrics.NewHTTPMetrics(registry),
			registry,
			contributionService,
			initializer,
			verifier,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

// verificationCache picks the backend named by config. Redis falls back to memory
// when no Redis endpoint is configured.
func verificationCache(cfg config.PaymentsConfig, client *redis.Client) (payments.VerificationCache, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CacheBackend)) {
	case config.CacheBackendNone:
		return nil, nil
	case config.CacheBackendRedis:
		if client != nil {
			return payments.NewRedisCache(client, cfg.CacheTTL)
		}
	}
	return payments.NewMemoryCache(cfg.CacheTTL), nil
}
