// Package handler provides HTTP handlers for all API endpoints.
// Postgres builds the response JSON; handlers pass raw bytes through.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/albapepper/scoracle-canon/internal/api/respond"
	"github.com/albapepper/scoracle-canon/internal/cache"
	"github.com/albapepper/scoracle-canon/internal/config"
	"github.com/albapepper/scoracle-canon/internal/player"
	"github.com/albapepper/scoracle-canon/internal/store"
)

// Paging bounds for list endpoints.
const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Store is the read side of the published dataset. *store.Reader
// implements it; a nil result with store.ErrNotFound maps to 404.
type Store interface {
	Ping(ctx context.Context) error
	Player(ctx context.Context, id player.CanonicalID) ([]byte, error)
	SearchPlayers(ctx context.Context, name string, limit int) ([]byte, error)
	Stints(ctx context.Context, id player.CanonicalID) ([]byte, error)
	Corrections(ctx context.Context, id string, limit int) ([]byte, error)
	Review(ctx context.Context, kind string, limit int) ([]byte, error)
	LatestRun(ctx context.Context) ([]byte, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store Store
	cache *cache.Cache
	cfg   *config.Config
}

// New creates a Handler with shared dependencies.
func New(s Store, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{store: s, cache: c, cfg: cfg}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, status, and available optimizations.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Scoracle Canon API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
		"optimizations": []string{
			"pgxpool_connection_pooling",
			"prepared_statements",
			"postgres_json_passthrough",
			"gzip_compression",
			"in_memory_cache",
			"etag_support",
		},
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Description Verifies Postgres connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns in-memory cache statistics (active keys, expired keys).
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// serveCached answers from the cache when it can, otherwise loads the JSON
// from the store and caches it. id is the canonical id the request is about,
// empty for listings; it is echoed in error bodies.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration,
	id, notFound string, load func(ctx context.Context) ([]byte, error)) {
	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	raw, err := load(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		respond.NotFound(w, id, notFound)
		return
	}
	if err != nil {
		respond.Unavailable(w, id, err)
		return
	}

	etag := h.cache.Set(key, raw, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, raw, etag, ttl, false)
}

// logTTL is the cache lifetime of audit and review responses.
func (h *Handler) logTTL() time.Duration {
	if h.cfg != nil && h.cfg.CacheTTL > 0 {
		return h.cfg.CacheTTL
	}
	return cache.TTLLogs
}

// parseLimit reads the limit query parameter, answering 400 when it is
// unusable.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxLimit {
		respond.InvalidParam(w, "limit", fmt.Sprintf("limit must be an integer between 1 and %d, got %q", maxLimit, s))
		return 0, false
	}
	return n, true
}
