package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/payhub/internal/config"
	"github.com/noah-isme/payhub/internal/gateway"
	"github.com/noah-isme/payhub/internal/health"
	"github.com/noah-isme/payhub/internal/notify"
	"github.com/noah-isme/payhub/internal/obs"
	"github.com/noah-isme/payhub/internal/provider"
	"github.com/noah-isme/payhub/internal/resilience"
	"github.com/noah-isme/payhub/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "payhub")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "payhub",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	kv := &store.Store{R: redisClient}

	processorClient := func(target string) *resilience.HTTPClient {
		return &resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   cfg.ProcessorTimeout,
				Transport: otelhttp.NewTransport(&http.Transport{}),
			},
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget(target).WithLogger(logger),
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 2,
			Jitter:      0.2,
			Timeout:     cfg.ProcessorTimeout,
			Target:      target,
		}
	}

	registry := provider.NewRegistry(
		&provider.Stripe{
			SecretKey:     cfg.StripeSecretKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			BaseURL:       cfg.StripeBaseURL,
			Tolerance:     cfg.SignatureTolerance,
			HTTP:          processorClient("stripe"),
		},
		&provider.Paddle{
			APIKey:        cfg.PaddleAPIKey,
			WebhookSecret: cfg.PaddleWebhookSecret,
			BaseURL:       cfg.PaddleBaseURL,
			Sandbox:       cfg.PaddleSandbox,
			Tolerance:     cfg.SignatureTolerance,
			HTTP:          processorClient("paddle"),
		},
		&provider.PayPal{
			ClientID:     cfg.PayPalClientID,
			ClientSecret: cfg.PayPalClientSecret,
			WebhookID:    cfg.PayPalWebhookID,
			BaseURL:      cfg.PayPalBaseURL,
			Sandbox:      cfg.PayPalSandbox,
			HTTP:         processorClient("paypal"),
		},
		provider.NotImplemented{Provider: "lemonsqueezy"},
	)

	notifier := &notify.Notifier{
		URL:    cfg.BackendNotifyURL,
		Secret: cfg.BackendNotifySecret,
		HTTP: &resilience.HTTPClient{
			Client:      notify.HTTPClient(cfg.ProcessorTimeout),
			Breaker:     resilience.NewBreaker(5, 0.5, 30*time.Second).WithTarget("backend-notify").WithLogger(logger),
			MaxAttempts: 1,
			Timeout:     cfg.ProcessorTimeout,
			Target:      "backend-notify",
		},
		Logger: logger,
	}

	svc := &gateway.Service{
		Registry:        registry,
		Store:           kv,
		Notifier:        notifier,
		Validate:        validator.New(),
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
		SessionTTL:      cfg.SessionTTL,
		SubscriptionTTL: cfg.SubscriptionTTL,
		EventTTL:        cfg.EventTTL,
		MetricsTTL:      cfg.MetricsTTL,
	}
	handler := &gateway.Handler{Svc: svc}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse rate limit")
	}
	limiterStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "payhub:rl"})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise limiter store")
	}
	rateLimiter := limiterstdlib.NewMiddleware(limiter.New(limiterStore, rate))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{kv: kv},
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Use(rateLimiter.Handler)
		api.Post("/checkout", handler.Checkout)
		api.Get("/receipt/{sessionId}", handler.Receipt)
		api.Post("/subscription", handler.Subscribe)
		api.Delete("/subscription/{subscriptionId}", handler.CancelSubscription)
		api.Post("/webhook/{provider}", svc.HandleWebhook)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-stopCtx.Done()
	logger.Info().Msg("shutting down")
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

type readinessChecker struct {
	kv *store.Store
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	return c.kv.Ping(ctx, timeout)
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDurationMillis(key string, fallbackMs int) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Duration(fallbackMs) * time.Millisecond
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return time.Duration(fallbackMs) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}
