// Package api wires the HTTP router that serves published canonical data.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/albapepper/scoracle-canon/internal/api/handler"
	"github.com/albapepper/scoracle-canon/internal/cache"
	"github.com/albapepper/scoracle-canon/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and routes.
func NewRouter(s handler.Store, appCache *cache.Cache, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "If-None-Match", "Cache-Control"},
		ExposedHeaders:   []string{"X-Process-Time", "X-Cache", "ETag"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	h := handler.New(s, appCache, cfg)

	r.Get("/", h.Root)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
		r.Get("/cache", h.HealthCheckCache)
	})

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/players", h.SearchPlayers)
		r.Get("/players/{id}", h.GetPlayer)
		r.Get("/players/{id}/stints", h.GetPlayerStints)

		r.Get("/audit/corrections", h.GetCorrections)
		r.Get("/review", h.GetReview)
		r.Get("/runs/latest", h.GetLatestRun)
	})

	return r
}
