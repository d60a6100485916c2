package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/health"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *Config, services *Services) *http.Server {
	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	handler := c.Handler(newRouter(cfg, services))

	// Setup HTTP/2 server
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func newRouter(cfg *Config, services *Services) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(log.Logger))

	r.Get("/health", health.Live)
	r.Method(http.MethodGet, "/ready", services.Health)
	r.Get("/metrics", services.Health.Metrics)

	// outside /api so upgrades get an unwrapped ResponseWriter
	services.Gateway.RegisterRoutes(r)

	r.Route("/api", func(r chi.Router) {
		r.Use(accessLog)

		services.AuthHandler.RegisterRoutes(r)
		services.Competitions.RegisterReadRoutes(r)

		if !cfg.Admin.External {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdminKey(cfg.Admin.Key))
				services.Competitions.RegisterAdminRoutes(r)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(services.Auth.RequireJudge)
			services.Timing.RegisterRoutes(r)
		})
	})

	return r
}

var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
	level := zerolog.InfoLevel
	if status >= http.StatusInternalServerError {
		level = zerolog.ErrorLevel
	}
	hlog.FromRequest(r).WithLevel(level).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
})
