package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/paystack-provider/internal/common"
	"github.com/noah-isme/paystack-provider/internal/config"
	"github.com/noah-isme/paystack-provider/internal/health"
	"github.com/noah-isme/paystack-provider/internal/obs"
	"github.com/noah-isme/paystack-provider/internal/payment"
	"github.com/noah-isme/paystack-provider/internal/paystack"
	"github.com/noah-isme/paystack-provider/internal/ratelimit"
	"github.com/noah-isme/paystack-provider/internal/resilience"
	"github.com/noah-isme/paystack-provider/internal/security"
)

type serverDeps struct {
	cfg      *config.Config
	logger   zerolog.Logger
	provider payment.Provider
	gateway  paystack.Client
	redis    *redis.Client
	limiter  ratelimit.Limiter
	locks    payment.RefundLocker
	sink     payment.ActionSink
	metrics  *obs.HTTPMetrics
	probes   map[string]health.Probe
	pprof    http.Handler
	tracing  bool
}

func newRouter(d serverDeps) http.Handler {
	webhook := payment.Webhook{
		Provider:  d.provider,
		Replay:    d.redis,
		ReplayTTL: d.cfg.WebhookReplayTTL,
		Sink:      d.sink,
		Logger:    d.logger,
	}
	admin := payment.AdminHandler{
		Gateway:  d.gateway,
		Provider: d.provider,
		Locks:    d.locks,
		Logger:   d.logger,
	}
	idem := common.Idem{R: d.redis, TTL: d.cfg.IdempotencyTTL, Prefix: "idem:paystack:"}
	onLimitErr := func(err error) { d.logger.Warn().Err(err).Msg("rate limiter unavailable") }
	limit := func(scope string) func(http.Handler) http.Handler {
		return ratelimit.Handler{
			Limiter: d.limiter,
			Config:  ratelimit.Config{Key: ratelimit.ByClientIP(scope), Window: d.cfg.RateLimitWindow, Max: d.cfg.RateLimitMax},
			OnError: onLimitErr,
		}.Middleware
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.metrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(d.cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader, payment.SignatureHeader},
		MaxAge:         300,
	}))

	if d.metrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.pprof != nil {
		r.Mount("/debug/pprof", d.pprof)
	}

	healthHandler := health.Handler{Probes: d.probes}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/store/paystack/webhook", func(wh chi.Router) {
		wh.Get("/", webhook.Status)
		wh.With(
			limit("webhook"),
			security.BodyLimit{Max: d.cfg.WebhookMaxBodyBytes}.Middleware,
		).Post("/", webhook.Handle)
	})

	r.Route("/admin/paystack", func(a chi.Router) {
		a.Use(limit("admin"))
		a.Use(security.StaticBearer{Token: d.cfg.AdminAPIToken}.Middleware)
		a.Get("/", admin.Verify)
		a.With(idem.Middleware).Post("/", admin.Action)
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func breakerProbe(rest *paystack.REST) health.Probe {
	return func(context.Context) error {
		if rest.HTTP.Breaker != nil && rest.HTTP.Breaker.State() == resilience.Open {
			return errors.New("circuit open")
		}
		return nil
	}
}
