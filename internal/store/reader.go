package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// ErrNotFound is returned when a player or run does not exist.
var ErrNotFound = errors.New("not found")

// querier is the subset of *pgxpool.Pool the reader needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reader serves published data as JSON built by Postgres, using the
// prepared statements registered in package db.
type Reader struct {
	db querier
}

// NewReader creates a reader over a pool.
func NewReader(db querier) *Reader {
	return &Reader{db: db}
}

// Ping verifies the database is reachable.
func (r *Reader) Ping(ctx context.Context) error {
	var n int
	return r.db.QueryRow(ctx, "health_check").Scan(&n)
}

// Player returns one canonical record.
func (r *Reader) Player(ctx context.Context, id player.CanonicalID) ([]byte, error) {
	return r.one(ctx, "player_by_id", id.String())
}

// SearchPlayers matches a name substring, case-insensitively.
func (r *Reader) SearchPlayers(ctx context.Context, name string, limit int) ([]byte, error) {
	return r.one(ctx, "players_by_name", name, limit)
}

// Stints returns a player's career stints in order.
func (r *Reader) Stints(ctx context.Context, id player.CanonicalID) ([]byte, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, "player_exists", id.String()).Scan(&exists); err != nil {
		return nil, fmt.Errorf("player_exists: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return r.one(ctx, "player_stints", id.String())
}

// Corrections returns the latest run's correction audit, optionally for one
// player.
func (r *Reader) Corrections(ctx context.Context, id string, limit int) ([]byte, error) {
	return r.one(ctx, "latest_corrections", id, limit)
}

// Review returns the latest run's review items, optionally of one kind.
func (r *Reader) Review(ctx context.Context, kind string, limit int) ([]byte, error) {
	return r.one(ctx, "latest_review", kind, limit)
}

// LatestRun returns the most recently published run.
func (r *Reader) LatestRun(ctx context.Context) ([]byte, error) {
	return r.one(ctx, "latest_run")
}

func (r *Reader) one(ctx context.Context, stmt string, args ...any) ([]byte, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, stmt, args...).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && raw == nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	return raw, nil
}
