// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema migration and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/scoracle-canon/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Migrate applies the embedded schema. Safe to run repeatedly.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Schema returns the embedded schema DDL.
func Schema() string {
	return schemaSQL
}

// latestRun selects the most recently published run.
const latestRun = "(SELECT run_id FROM pipeline_runs ORDER BY published_at DESC LIMIT 1)"

// Statements are the prepared statements the API reads through. Postgres
// builds the JSON; handlers pass the bytes through.
var Statements = map[string]string{
	// Health
	"health_check": "SELECT 1",

	// API: players
	"player_by_id": "SELECT to_jsonb(p) - 'run_id' FROM players p WHERE p.canonical_id = $1",
	"players_by_name": `SELECT coalesce(json_agg(json_build_object(
			'canonical_id', p.canonical_id, 'name', p.name, 'date_of_birth', p.date_of_birth,
			'current_club', p.current_club, 'market_value', p.market_value) ORDER BY p.name, p.canonical_id), '[]'::json)
		FROM (SELECT * FROM players WHERE lower(name) LIKE '%' || lower($1) || '%' ORDER BY name, canonical_id LIMIT $2) p`,
	"player_exists": "SELECT EXISTS (SELECT 1 FROM players WHERE canonical_id = $1)",
	"player_stints": `SELECT coalesce(json_agg(to_jsonb(s) - 'canonical_id' ORDER BY s.ordinal), '[]'::json)
		FROM career_stints s WHERE s.canonical_id = $1`,

	// API: audit and review of the latest published run
	"latest_corrections": `SELECT coalesce(json_agg(to_jsonb(c) - 'run_id' ORDER BY c.canonical_id, c.field_name), '[]'::json)
		FROM (SELECT * FROM correction_audit
			WHERE run_id = ` + latestRun + ` AND ($1 = '' OR canonical_id = $1)
			ORDER BY canonical_id, field_name LIMIT $2) c`,
	"latest_review": `SELECT coalesce(json_agg(to_jsonb(r) - 'run_id' - 'id' ORDER BY r.id), '[]'::json)
		FROM (SELECT * FROM review_items
			WHERE run_id = ` + latestRun + ` AND ($1 = '' OR kind = $1)
			ORDER BY id LIMIT $2) r`,
	"latest_run": "SELECT to_jsonb(r) FROM pipeline_runs r ORDER BY published_at DESC LIMIT 1",
}

// registerPreparedStatements registers all statements the API uses.
// Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	for name, sql := range Statements {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
