package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Paystack modes.
const (
	ModeLive = "live"
	ModeStub = "stub"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string   `env:"APP_ENV"`
	Port               string   `env:"PORT" validate:"required,numeric"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	PaystackSecretKey     string        `env:"PAYSTACK_SECRET_KEY" validate:"required"`
	PaystackPublicKey     string        `env:"PAYSTACK_PUBLIC_KEY" validate:"required"`
	PaystackWebhookSecret string        `env:"PAYSTACK_WEBHOOK_SECRET"`
	PaystackBaseURL       string        `env:"PAYSTACK_BASE_URL" validate:"required,url"`
	PaystackMode          string        `env:"PAYSTACK_MODE" validate:"oneof=live stub"`
	PaystackCallbackURL   string        `env:"PAYSTACK_CALLBACK_URL" validate:"omitempty,url"`
	PaystackTimeout       time.Duration `env:"PAYSTACK_TIMEOUT" validate:"gt=0"`

	RetryMaxAttempts    int           `env:"PAYSTACK_RETRY_MAX_ATTEMPTS" validate:"gte=1,lte=5"`
	RetryBase           time.Duration `env:"PAYSTACK_RETRY_BASE" validate:"gt=0"`
	RetryJitter         float64       `env:"PAYSTACK_RETRY_JITTER" validate:"gte=0,lte=1"`
	BreakerMinRequests  int           `env:"PAYSTACK_BREAKER_MIN_REQUESTS" validate:"gte=1"`
	BreakerFailureRatio float64       `env:"PAYSTACK_BREAKER_FAILURE_RATIO" validate:"gt=0,lte=1"`
	BreakerOpenFor      time.Duration `env:"PAYSTACK_BREAKER_OPEN_FOR" validate:"gt=0"`

	RedisURL            string        `env:"REDIS_URL"`
	WebhookReplayTTL    time.Duration `env:"WEBHOOK_REPLAY_TTL" validate:"gte=0"`
	WebhookMaxBodyBytes int64         `env:"WEBHOOK_MAX_BODY_BYTES" validate:"gt=0"`
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW" validate:"gte=0"`
	RateLimitMax        int           `env:"RATE_LIMIT_MAX" validate:"gte=0"`
	IdempotencyTTL      time.Duration `env:"IDEMPOTENCY_TTL" validate:"gt=0"`
	AdminAPIToken       string        `env:"ADMIN_API_TOKEN"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
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
		Port:               strings.TrimPrefix(valueOrDefault(k.String("PORT"), "9000"), ":"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		PaystackSecretKey:     strings.TrimSpace(k.String("PAYSTACK_SECRET_KEY")),
		PaystackPublicKey:     strings.TrimSpace(k.String("PAYSTACK_PUBLIC_KEY")),
		PaystackWebhookSecret: k.String("PAYSTACK_WEBHOOK_SECRET"),
		PaystackBaseURL:       valueOrDefault(k.String("PAYSTACK_BASE_URL"), "https://api.paystack.co"),
		PaystackMode:          strings.ToLower(valueOrDefault(k.String("PAYSTACK_MODE"), ModeLive)),
		PaystackCallbackURL:   strings.TrimSpace(k.String("PAYSTACK_CALLBACK_URL")),
		PaystackTimeout:       parseDuration(k.String("PAYSTACK_TIMEOUT"), "10s"),

		RetryMaxAttempts:    parseInt(k.String("PAYSTACK_RETRY_MAX_ATTEMPTS"), 1),
		RetryBase:           parseDuration(k.String("PAYSTACK_RETRY_BASE"), "200ms"),
		RetryJitter:         parseFloat(k.String("PAYSTACK_RETRY_JITTER"), 0.2),
		BreakerMinRequests:  parseInt(k.String("PAYSTACK_BREAKER_MIN_REQUESTS"), 10),
		BreakerFailureRatio: parseFloat(k.String("PAYSTACK_BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("PAYSTACK_BREAKER_OPEN_FOR"), "30s"),

		RedisURL:            strings.TrimSpace(k.String("REDIS_URL")),
		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		WebhookMaxBodyBytes: int64(parseInt(k.String("WEBHOOK_MAX_BODY_BYTES"), 1<<20)),
		RateLimitWindow:     parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:        parseInt(k.String("RATE_LIMIT_MAX"), 120),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		AdminAPIToken:       strings.TrimSpace(k.String("ADMIN_API_TOKEN")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required keys and value ranges. The returned error names
// the offending environment variables.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "9000"
	}
	return ":" + port
}

// StubMode reports whether the in-memory gateway should be used.
func (c *Config) StubMode() bool {
	return c.PaystackMode == ModeStub
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
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
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

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
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
