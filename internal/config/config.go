// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/canon and cmd/api.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// --------------------------------------------------------------------------
// Table names, matching schema.sql
// --------------------------------------------------------------------------

const (
	PlayersTable     = "players"
	StintsTable      = "career_stints"
	CorrectionsTable = "correction_audit"
	ReviewTable      = "review_items"
	RunsTable        = "pipeline_runs"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Pipeline
	ManifestPath     string
	OutputDir        string
	Shards           int
	ScaleThreshold   decimal.Decimal
	ScaleFactor      decimal.Decimal
	ScaleFields      []string
	MaxNameGroup     int
	RequireBirthYear bool
	IDSegments       []string
	PolicyFile       string
	PriorAudit       string
	WriteXLSX        bool
	InferYouthClubs  bool

	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration

	LogLevel slog.Level
}

// Load reads configuration from environment variables with sensible defaults.
// The database URL is optional here; commands that talk to Postgres call
// RequireDatabase.
func Load() (*Config, error) {
	threshold, err := envDecimal("CANON_SCALE_THRESHOLD", decimal.NewFromInt(1_000_000))
	if err != nil {
		return nil, err
	}
	factor, err := envDecimal("CANON_SCALE_FACTOR", decimal.NewFromInt(100))
	if err != nil {
		return nil, err
	}
	if !factor.IsPositive() {
		return nil, fmt.Errorf("CANON_SCALE_FACTOR must be positive, got %s", factor)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(envOr("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return &Config{
		ManifestPath:     envOr("CANON_MANIFEST", "manifest.toml"),
		OutputDir:        envOr("CANON_OUTPUT_DIR", "output"),
		Shards:           envInt("CANON_SHARDS", 4),
		ScaleThreshold:   threshold,
		ScaleFactor:      factor,
		ScaleFields:      envList("CANON_SCALE_FIELDS", []string{"market_value", "latest_fee"}),
		MaxNameGroup:     envInt("CANON_MAX_NAME_GROUP", 1),
		RequireBirthYear: envBool("CANON_REQUIRE_BIRTH_YEAR", false),
		IDSegments:       envList("CANON_ID_SEGMENTS", []string{"spieler"}),
		PolicyFile:       envOr("CANON_POLICY_FILE", ""),
		PriorAudit:       envOr("CANON_PRIOR_AUDIT", ""),
		WriteXLSX:        envBool("CANON_XLSX", false),
		InferYouthClubs:  envBool("CANON_INFER_YOUTH_CLUBS", true),

		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),
		CacheTTL:     time.Duration(envInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		LogLevel: level,
	}, nil
}

// RequireDatabase reports an error when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// envDecimal is strict: a malformed money threshold must not silently fall
// back to the default.
func envDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, "_", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
