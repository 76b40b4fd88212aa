package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-canon/internal/pipeline"
	"github.com/albapepper/scoracle-canon/internal/player"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExec struct {
	calls  []execCall
	failOn string
}

func (f *fakeExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New("boom")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeExec) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(strings.TrimSpace(c.sql), prefix) {
			n++
		}
	}
	return n
}

func ip(v int) *int { return &v }

func sampleResult() *pipeline.Result {
	rec := player.NewRecord(player.NumericID(108390), player.SourceRow{
		Source:    "bulk",
		Pass:      1,
		Reference: "/robin-van-persie/profil/spieler/108390",
		Fields: map[player.Field]string{
			player.FieldName:        "Robin van Persie",
			player.FieldMarketValue: "250000",
			player.FieldLatestFee:   "-",
		},
	})
	rec.Stints = []player.CareerStint{
		{Club: "Excelsior", Raw: "Excelsior"},
		{Club: "Feyenoord", From: ip(1997), To: ip(2004), Duration: ip(7), Raw: "Feyenoord (1997-2004)"},
	}
	syn := player.NewRecord(player.SyntheticID("jan jansen"), player.SourceRow{
		Source: "scrape",
		Fields: map[player.Field]string{player.FieldName: "Jan Jansen"},
	})

	return &pipeline.Result{
		RunID:     uuid.MustParse("5f0c8f56-3f0b-4b8e-9d0e-5a1b0f3c2d11"),
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Dataset: player.Dataset{
			Records: []player.PlayerRecord{rec, syn},
			Corrections: []player.Correction{{
				ID: rec.ID, Field: player.FieldMarketValue,
				Original: decimal.NewFromInt(25_000_000), Corrected: decimal.NewFromInt(250_000),
				Action: player.ActionDivided,
			}},
			Review: []player.ReviewItem{{ID: syn.ID, Kind: player.ReviewNameCollision, Detail: "2 rows"}},
		},
	}
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestPublishWritesEveryTable(t *testing.T) {
	ex := &fakeExec{}
	res, err := publish(context.Background(), ex, sampleResult(), []string{"bulk", "scrape"}, quiet)
	require.NoError(t, err)

	assert.Equal(t, PublishResult{PlayersUpserted: 2, StintsWritten: 2, CorrectionsWritten: 1, ReviewWritten: 1}, res)
	assert.Equal(t, "players=2 stints=2 corrections=1 review=1", res.Summary())
	assert.Contains(t, ex.calls[0].sql, "pipeline_runs")
	assert.Equal(t, "5f0c8f56-3f0b-4b8e-9d0e-5a1b0f3c2d11", ex.calls[0].args[0])
	assert.Equal(t, 2, ex.count("DELETE FROM career_stints"))
	assert.Equal(t, []string{"bulk", "scrape"}, ex.calls[0].args[4])

	review := ex.calls[len(ex.calls)-1]
	assert.Contains(t, review.sql, "review_items")
	assert.Nil(t, review.args[2], "record-level review items have no field")
}

func TestPublishStopsOnFirstError(t *testing.T) {
	ex := &fakeExec{failOn: "correction_audit"}
	_, err := publish(context.Background(), ex, sampleResult(), nil, quiet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert correction 108390/market_value")
	assert.Zero(t, ex.count("INSERT INTO review_items"))
}

func TestPlayerArgs(t *testing.T) {
	res := sampleResult()
	args := playerArgs("run", res.Dataset.Records[0])

	require.Len(t, args, 3+len(player.Fields)+2)
	assert.Equal(t, "108390", args[0])
	assert.Equal(t, int64(108390), args[1])
	assert.Equal(t, "Robin van Persie", args[3])
	assert.Nil(t, args[4], "null team")
	assert.Equal(t, "250000", args[9], "market value")
	assert.Nil(t, args[18], "unparseable fee is published as NULL")
	assert.Equal(t, "run", args[len(args)-1])

	var prov map[string]player.Value
	require.NoError(t, json.Unmarshal(args[len(args)-2].([]byte), &prov))
	assert.Equal(t, player.Value{Raw: "Robin van Persie", Source: "bulk", Pass: 1}, prov["name"])

	synArgs := playerArgs("run", res.Dataset.Records[1])
	assert.Nil(t, synArgs[1], "synthetic ids have no numeric id")
	assert.Nil(t, synArgs[2])
}

type fakeRow struct {
	raw []byte
	err error
	b   *bool
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	switch d := dest[0].(type) {
	case *[]byte:
		*d = r.raw
	case *bool:
		*d = r.b != nil && *r.b
	case *int:
		*d = 1
	}
	return nil
}

type fakeQuerier struct {
	rows map[string]fakeRow
	args map[string][]any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	if q.args == nil {
		q.args = map[string][]any{}
	}
	q.args[sql] = args
	if row, ok := q.rows[sql]; ok {
		return row
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func TestReader(t *testing.T) {
	yes, no := true, false
	q := &fakeQuerier{rows: map[string]fakeRow{
		"health_check":       {},
		"player_by_id":       {raw: []byte(`{"canonical_id":"108390"}`)},
		"player_exists":      {b: &yes},
		"player_stints":      {raw: []byte(`[]`)},
		"players_by_name":    {raw: []byte(`[]`)},
		"latest_corrections": {raw: nil},
	}}
	r := NewReader(q)
	ctx := context.Background()

	require.NoError(t, r.Ping(ctx))

	raw, err := r.Player(ctx, player.NumericID(108390))
	require.NoError(t, err)
	assert.JSONEq(t, `{"canonical_id":"108390"}`, string(raw))
	assert.Equal(t, []any{"108390"}, q.args["player_by_id"])

	raw, err = r.Stints(ctx, player.NumericID(108390))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))

	_, err = r.SearchPlayers(ctx, "persie", 20)
	require.NoError(t, err)
	assert.Equal(t, []any{"persie", 20}, q.args["players_by_name"])

	_, err = r.Corrections(ctx, "", 100)
	assert.ErrorIs(t, err, ErrNotFound, "a NULL result is not found")

	_, err = r.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	q.rows["player_exists"] = fakeRow{b: &no}
	_, err = r.Stints(ctx, player.NumericID(1))
	assert.ErrorIs(t, err, ErrNotFound)
}
