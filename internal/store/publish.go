// Package store publishes canonical datasets to Postgres and reads them back
// for the API.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/albapepper/scoracle-canon/internal/config"
	"github.com/albapepper/scoracle-canon/internal/pipeline"
	"github.com/albapepper/scoracle-canon/internal/player"
)

// execer is the subset of pgx.Tx the publish statements need.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// beginner starts transactions; *pgxpool.Pool satisfies it.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher writes runs to Postgres.
type Publisher struct {
	db     beginner
	logger *slog.Logger
}

// NewPublisher creates a publisher over a pool.
func NewPublisher(db beginner, logger *slog.Logger) *Publisher {
	return &Publisher{db: db, logger: logger}
}

// Publish writes a run in one transaction: the run row, every player upserted
// by canonical id, their stints replaced, and the run's audit and review logs.
func (p *Publisher) Publish(ctx context.Context, res *pipeline.Result, snapshots []string) (PublishResult, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return PublishResult{}, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := publish(ctx, tx, res, snapshots, p.logger)
	if err != nil {
		return PublishResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("commit publish: %w", err)
	}
	return result, nil
}

func publish(ctx context.Context, ex execer, res *pipeline.Result, snapshots []string, logger *slog.Logger) (PublishResult, error) {
	var result PublishResult

	if snapshots == nil {
		snapshots = []string{}
	}
	_, err := ex.Exec(ctx, `
		INSERT INTO `+config.RunsTable+` (run_id, started_at, duration_ms, summary, snapshots)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (run_id) DO UPDATE SET
			summary = EXCLUDED.summary,
			published_at = NOW()`,
		res.RunID.String(), res.StartedAt, res.Stats.Duration.Milliseconds(), res.Summary(), snapshots,
	)
	if err != nil {
		return result, fmt.Errorf("insert run: %w", err)
	}

	logger.Info("Phase 1/3: Publishing players...", "count", len(res.Dataset.Records))
	for _, rec := range res.Dataset.Records {
		if err := upsertPlayer(ctx, ex, res.RunID.String(), rec); err != nil {
			return result, fmt.Errorf("upsert player %s: %w", rec.ID, err)
		}
		result.PlayersUpserted++

		n, err := replaceStints(ctx, ex, rec)
		if err != nil {
			return result, fmt.Errorf("stints for %s: %w", rec.ID, err)
		}
		result.StintsWritten += n
	}

	logger.Info("Phase 2/3: Publishing correction audit...", "count", len(res.Dataset.Corrections))
	for _, c := range res.Dataset.Corrections {
		_, err := ex.Exec(ctx, `
			INSERT INTO `+config.CorrectionsTable+` (
				run_id, canonical_id, field_name, original_value, corrected_value, action
			) VALUES ($1,$2,$3,CAST($4::text AS NUMERIC),CAST($5::text AS NUMERIC),$6)
			ON CONFLICT (run_id, canonical_id, field_name) DO UPDATE SET
				original_value = EXCLUDED.original_value,
				corrected_value = EXCLUDED.corrected_value,
				action = EXCLUDED.action`,
			res.RunID.String(), c.ID.String(), string(c.Field),
			player.FormatMoney(c.Original), player.FormatMoney(c.Corrected), c.Action,
		)
		if err != nil {
			return result, fmt.Errorf("insert correction %s/%s: %w", c.ID, c.Field, err)
		}
		result.CorrectionsWritten++
	}

	logger.Info("Phase 3/3: Publishing review items...", "count", len(res.Dataset.Review))
	for _, r := range res.Dataset.Review {
		_, err := ex.Exec(ctx, `
			INSERT INTO `+config.ReviewTable+` (run_id, canonical_id, field_name, kind, detail)
			VALUES ($1,$2,$3,$4,$5)`,
			res.RunID.String(), r.ID.String(), nilEmpty(string(r.Field)), r.Kind, r.Detail,
		)
		if err != nil {
			return result, fmt.Errorf("insert review item %s: %w", r.ID, err)
		}
		result.ReviewWritten++
	}
	return result, nil
}

// upsertPlayer writes one canonical record. Nulls never overwrite published
// values.
func upsertPlayer(ctx context.Context, ex execer, runID string, rec player.PlayerRecord) error {
	_, err := ex.Exec(ctx, `
		INSERT INTO `+config.PlayersTable+` (
			canonical_id, numeric_id, profile_reference, name, team, competition,
			season, nationality, position, market_value, date_of_birth,
			place_of_birth, country_of_birth, dominant_foot, agent, current_club,
			youth_club, latest_transfer_date, latest_fee, social_links,
			provenance, run_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,CAST($10::text AS NUMERIC),$11,$12,$13,$14,$15,$16,$17,$18,
			CAST($19::text AS NUMERIC),$20,$21,$22)
		ON CONFLICT (canonical_id) DO UPDATE SET
			profile_reference = COALESCE(EXCLUDED.profile_reference, `+config.PlayersTable+`.profile_reference),
			name = COALESCE(EXCLUDED.name, `+config.PlayersTable+`.name),
			team = COALESCE(EXCLUDED.team, `+config.PlayersTable+`.team),
			competition = COALESCE(EXCLUDED.competition, `+config.PlayersTable+`.competition),
			season = COALESCE(EXCLUDED.season, `+config.PlayersTable+`.season),
			nationality = COALESCE(EXCLUDED.nationality, `+config.PlayersTable+`.nationality),
			position = COALESCE(EXCLUDED.position, `+config.PlayersTable+`.position),
			market_value = COALESCE(EXCLUDED.market_value, `+config.PlayersTable+`.market_value),
			date_of_birth = COALESCE(EXCLUDED.date_of_birth, `+config.PlayersTable+`.date_of_birth),
			place_of_birth = COALESCE(EXCLUDED.place_of_birth, `+config.PlayersTable+`.place_of_birth),
			country_of_birth = COALESCE(EXCLUDED.country_of_birth, `+config.PlayersTable+`.country_of_birth),
			dominant_foot = COALESCE(EXCLUDED.dominant_foot, `+config.PlayersTable+`.dominant_foot),
			agent = COALESCE(EXCLUDED.agent, `+config.PlayersTable+`.agent),
			current_club = COALESCE(EXCLUDED.current_club, `+config.PlayersTable+`.current_club),
			youth_club = COALESCE(EXCLUDED.youth_club, `+config.PlayersTable+`.youth_club),
			latest_transfer_date = COALESCE(EXCLUDED.latest_transfer_date, `+config.PlayersTable+`.latest_transfer_date),
			latest_fee = COALESCE(EXCLUDED.latest_fee, `+config.PlayersTable+`.latest_fee),
			social_links = COALESCE(EXCLUDED.social_links, `+config.PlayersTable+`.social_links),
			provenance = `+config.PlayersTable+`.provenance || EXCLUDED.provenance,
			run_id = EXCLUDED.run_id,
			updated_at = NOW()`,
		playerArgs(runID, rec)...,
	)
	return err
}

// playerArgs renders the upsert parameters in column order.
func playerArgs(runID string, rec player.PlayerRecord) []any {
	var numeric any
	if n, ok := rec.ID.Numeric(); ok {
		numeric = n
	}
	prov, _ := json.Marshal(nonNilProvenance(rec.Fields))

	args := []any{rec.ID.String(), numeric, nilEmpty(rec.Reference)}
	for _, f := range player.Fields {
		switch f {
		case player.FieldMarketValue, player.FieldLatestFee:
			args = append(args, moneyArg(rec.Get(f)))
		default:
			args = append(args, nilEmpty(rec.Get(f)))
		}
	}
	return append(args, prov, runID)
}

func replaceStints(ctx context.Context, ex execer, rec player.PlayerRecord) (int, error) {
	if _, err := ex.Exec(ctx, `DELETE FROM `+config.StintsTable+` WHERE canonical_id = $1`, rec.ID.String()); err != nil {
		return 0, err
	}
	for i, s := range rec.Stints {
		_, err := ex.Exec(ctx, `
			INSERT INTO `+config.StintsTable+` (
				canonical_id, ordinal, club, from_year, to_year, duration_years, country, raw_text, estimated
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			rec.ID.String(), i, s.Club, s.From, s.To, s.Duration, nilEmpty(s.Country), s.Raw, s.Estimated,
		)
		if err != nil {
			return i, err
		}
	}
	return len(rec.Stints), nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// nilEmpty returns nil for empty strings (maps to SQL NULL).
func nilEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// moneyArg returns the plain decimal form of a monetary value, or nil when
// the value never parsed; the raw text stays in the CSV artifacts.
func moneyArg(raw string) interface{} {
	d, ok := player.ParseMoney(raw)
	if !ok {
		return nil
	}
	return player.FormatMoney(d)
}

func nonNilProvenance(fields map[player.Field]player.Value) map[player.Field]player.Value {
	if fields == nil {
		return map[player.Field]player.Value{}
	}
	return fields
}
