package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yae-assistant/yae/internal/middleware"
	"github.com/yae-assistant/yae/pkg/logger"
)

// RouterConfig wires handlers and middleware settings into a router.
type RouterConfig struct {
	Chat     *ChatHandler
	Sessions *SessionHandler
	Users    *UserHandler
	Health   *HealthHandler
	Logger   *logger.Logger

	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSOrigins       []string
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Post("/chat", cfg.Chat.Chat)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", cfg.Sessions.Create)
			r.Get("/", cfg.Sessions.List)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Get("/", cfg.Sessions.Messages)
				r.Delete("/", cfg.Sessions.Delete)
				r.Post("/messages", cfg.Sessions.AddMessage)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", cfg.Users.Create)
			r.Get("/", cfg.Users.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Users.Get)
				r.Patch("/", cfg.Users.Update)
				r.Delete("/", cfg.Users.Delete)
				r.Get("/sessions", cfg.Sessions.ListByOwner)
			})
		})
	})

	return r
}
