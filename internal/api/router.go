package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lawconnect/booking-gateway/internal/booking"
	"github.com/lawconnect/booking-gateway/internal/metrics"
	"github.com/lawconnect/booking-gateway/internal/session"
	"github.com/lawconnect/booking-gateway/internal/upstream"
)

type RouterConfig struct {
	Upstream *upstream.Client
	Sessions *session.Store
	Flows    *booking.Manager
	Redis    *redis.Client
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Env      string
	Version  string

	// Now is the time source for calendar rendering and flow clocks.
	// Defaults to time.Now; tests pin it.
	Now func() time.Time
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	h := &Handler{
		upstream: cfg.Upstream,
		sessions: cfg.Sessions,
		flows:    cfg.Flows,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}

	// Health and metrics endpoints
	health := NewHealthHandler(cfg.Redis, cfg.Upstream, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", h.login)

	// Everything below needs a live session
	r.Group(func(r chi.Router) {
		r.Use(RequireSession(cfg.Sessions))

		r.Post("/auth/logout", h.logout)

		r.Get("/lawyers", h.listLawyers)
		r.Get("/lawyers/{lawyerID}", h.lawyerDetails)
		r.Get("/lawyers/{lawyerID}/reviews", h.lawyerReviews)
		r.Get("/appointments", h.listAppointments)

		r.Route("/booking/{lawyerID}", func(r chi.Router) {
			r.Get("/", h.openBooking)
			r.Get("/calendar", h.calendarMonth)
			r.Post("/date", h.selectDate)
			r.Post("/slot", h.selectSlot)
			r.Post("/review", h.openReview)
			r.Patch("/draft", h.updateDraft)
			r.Post("/confirm", h.confirm)
			r.Post("/cancel", h.cancelBooking)
		})
	})

	return r
}
