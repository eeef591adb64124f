package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	DefaultCurrency    string
	SessionTTL         time.Duration
	SubscriptionTTL    time.Duration
	EventTTL           time.Duration
	MetricsTTL         time.Duration
	SignatureTolerance time.Duration
	ProcessorTimeout   time.Duration

	BackendNotifyURL    string
	BackendNotifySecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	StripeBaseURL       string

	PaddleAPIKey        string
	PaddleWebhookSecret string
	PaddleBaseURL       string
	PaddleSandbox       bool

	PayPalClientID     string
	PayPalClientSecret string
	PayPalWebhookID    string
	PayPalBaseURL      string
	PayPalSandbox      bool

	RateLimit string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DefaultCurrency:    strings.ToUpper(valueOrDefault(k.String("DEFAULT_CURRENCY"), "USD")),
		SessionTTL:         parseDuration(k.String("SESSION_TTL"), "1h"),
		SubscriptionTTL:    parseDuration(k.String("SUBSCRIPTION_TTL"), "720h"),
		EventTTL:           parseDuration(k.String("EVENT_TTL"), "168h"),
		MetricsTTL:         parseDuration(k.String("METRICS_TTL"), "48h"),
		SignatureTolerance: parseDuration(k.String("SIGNATURE_TOLERANCE"), "300s"),
		ProcessorTimeout:   parseDuration(k.String("PROCESSOR_TIMEOUT"), "10s"),

		BackendNotifyURL:    k.String("BACKEND_NOTIFY_URL"),
		BackendNotifySecret: k.String("BACKEND_NOTIFY_SECRET"),

		StripeSecretKey:     k.String("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),
		StripeBaseURL:       k.String("STRIPE_BASE_URL"),

		PaddleAPIKey:        k.String("PADDLE_API_KEY"),
		PaddleWebhookSecret: k.String("PADDLE_WEBHOOK_SECRET"),
		PaddleBaseURL:       k.String("PADDLE_BASE_URL"),
		PaddleSandbox:       parseBool(k.String("PADDLE_SANDBOX")),

		PayPalClientID:     k.String("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: k.String("PAYPAL_CLIENT_SECRET"),
		PayPalWebhookID:    k.String("PAYPAL_WEBHOOK_ID"),
		PayPalBaseURL:      k.String("PAYPAL_BASE_URL"),
		PayPalSandbox:      parseBool(k.String("PAYPAL_SANDBOX")),

		RateLimit: valueOrDefault(k.String("RATE_LIMIT"), "120-M"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.BackendNotifyURL == "" {
		return nil, errors.New("BACKEND_NOTIFY_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
