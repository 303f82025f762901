package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/paystack-provider/internal/config"
	"github.com/noah-isme/paystack-provider/internal/events"
	"github.com/noah-isme/paystack-provider/internal/health"
	"github.com/noah-isme/paystack-provider/internal/lock"
	"github.com/noah-isme/paystack-provider/internal/obs"
	"github.com/noah-isme/paystack-provider/internal/payment"
	"github.com/noah-isme/paystack-provider/internal/paystack"
	"github.com/noah-isme/paystack-provider/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "paystack")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   envOrDefault("OBS_SERVICE_NAME", obs.DefaultServiceName),
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
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

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(cfg.RedisURL, metricsEnabled)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
	} else {
		logger.Warn().Msg("REDIS_URL not set: webhook replay guard, idempotency and refund locks disabled")
	}

	var (
		gateway paystack.Client
		rest    *paystack.REST
	)
	if cfg.StubMode() {
		logger.Warn().Msg("PAYSTACK_MODE=stub: using in-memory gateway")
		gateway = paystack.NewStub("")
	} else {
		rest = paystack.NewREST(cfg.PaystackSecretKey, paystack.Options{
			BaseURL:      cfg.PaystackBaseURL,
			Timeout:      cfg.PaystackTimeout,
			MaxAttempts:  cfg.RetryMaxAttempts,
			RetryBase:    cfg.RetryBase,
			RetryJitter:  cfg.RetryJitter,
			MinRequests:  cfg.BreakerMinRequests,
			FailureRatio: cfg.BreakerFailureRatio,
			OpenFor:      cfg.BreakerOpenFor,
			Logger:       logger,
		})
		gateway = rest
	}
	if cfg.PaystackWebhookSecret == "" {
		logger.Warn().Msg("PAYSTACK_WEBHOOK_SECRET not set: webhook signatures are not verified")
	}

	provider, err := payment.NewPaystackProvider(payment.Config{
		SecretKey:     cfg.PaystackSecretKey,
		PublicKey:     cfg.PaystackPublicKey,
		WebhookSecret: cfg.PaystackWebhookSecret,
		CallbackURL:   cfg.PaystackCallbackURL,
	}, gateway, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise paystack provider")
	}

	deps := serverDeps{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		gateway:  gateway,
		redis:    redisClient,
		limiter:  ratelimit.NewMemoryStore("paystack"),
		probes:   map[string]health.Probe{},
		tracing:  tracingEnabled,
	}
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		deps.metrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}
	if redisClient != nil {
		deps.limiter = ratelimit.SlidingRedis{Client: redisClient, Prefix: "rl:paystack:"}
		deps.locks = lock.Locker{R: redisClient, Prefix: "lock:refund:", MaxWait: 2 * time.Second}
		deps.sink = events.WebhookSink{Bus: &events.Bus{
			Store:     events.RedisStream{R: redisClient, Stream: envOrDefault("EVENTS_STREAM", events.DefaultStream), MaxLen: int64(envInt("EVENTS_STREAM_MAXLEN", 10000))},
			Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
		}}
		deps.probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if rest != nil {
		deps.probes["paystack"] = breakerProbe(rest)
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		deps.pprof = protectPprof(newPprofMux(),
			envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", ""),
			envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", ""))
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("mode", cfg.PaystackMode).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func connectRedis(url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, err
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			return nil, err
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
