package source

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-canon/internal/player"
)

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
[[snapshot]]
name = "bulk"
path = "exports/players.csv"

[[snapshot]]
path = "/data/dev.db"

[[snapshot]]
name = "fixes"
path = "manual.tsv"
manual = true
delimiter = "\t"
timestamp_column = "edited"
[snapshot.columns]
"Spieler" = "name"
`), "/runs")
	require.NoError(t, err)
	require.Len(t, m.Snapshots, 3)

	assert.Equal(t, "/runs/exports/players.csv", m.Snapshots[0].Path)
	assert.Equal(t, KindCSV, m.Snapshots[0].Kind)
	assert.Equal(t, "dev", m.Snapshots[1].Name)
	assert.Equal(t, KindLegacy, m.Snapshots[1].Kind)
	assert.True(t, m.Snapshots[2].Manual)
	assert.Equal(t, "\t", m.Snapshots[2].Delimiter)
	assert.Equal(t, "name", m.Snapshots[2].Columns["Spieler"])
}

func TestParseManifestRejects(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"empty", ``, "no snapshots"},
		{"missing path", "[[snapshot]]\nname = \"a\"\n", "path is required"},
		{"duplicate", "[[snapshot]]\nname = \"a\"\npath = \"a.csv\"\n[[snapshot]]\nname = \"a\"\npath = \"b.csv\"\n", "duplicate name"},
		{"kind", "[[snapshot]]\npath = \"a.json\"\nkind = \"json\"\n", "unknown snapshot kind"},
		{"delimiter", "[[snapshot]]\npath = \"a.csv\"\ndelimiter = \";;\"\n", "single character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.toml), "")
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := ParseManifest([]byte("[[snapshot]]\npath = \"a.json\"\nkind = \"json\"\n"), "")
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestReadCSVMapsAliases(t *testing.T) {
	data := "\ufeffFull_Name,profile_url,team_name,latest_market_value,foot,scraped_at,unused\n" +
		"Kylian Mbappé,https://www.transfermarkt.com/kylian-mbappe/profil/spieler/342229,PSG,\"180,000,000\",right,2024-05-01,x\n" +
		",,,-,,,\n" +
		"Ousmane Dembélé,,Barcelona,?,left,not a date,\n"

	snap, err := ReadCSV(strings.NewReader(data), Spec{Name: "bulk"}, 2)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2)

	first := snap.Rows[0]
	assert.Equal(t, "bulk", first.Source)
	assert.Equal(t, 2, first.Pass)
	assert.Equal(t, 1, first.Line)
	assert.Equal(t, "https://www.transfermarkt.com/kylian-mbappe/profil/spieler/342229", first.Reference)
	assert.Equal(t, "Kylian Mbappé", first.Fields[player.FieldName])
	assert.Equal(t, "PSG", first.Fields[player.FieldTeam])
	assert.Equal(t, "180,000,000", first.Fields[player.FieldMarketValue])
	assert.Equal(t, "right", first.Fields[player.FieldDominantFoot])
	require.NotNil(t, first.Timestamp)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *first.Timestamp)
	assert.Len(t, first.Fields, 4)

	second := snap.Rows[1]
	assert.Equal(t, 3, second.Line, "skipped rows keep their ordinal")
	assert.NotContains(t, second.Fields, player.FieldMarketValue)
	assert.Nil(t, second.Timestamp)

	require.Len(t, snap.Failures, 1)
	assert.Equal(t, "bulk:3", snap.Failures[0].Reference)
	assert.Equal(t, "unparseable timestamp", snap.Failures[0].Reason)
}

func TestReadCSVOverridesAndDelimiter(t *testing.T) {
	data := "Spieler;Verein;edited;scraped_at\nMüller;Bayern;1714521600;2020-01-01\n"
	spec := Spec{
		Name:            "fixes",
		Manual:          true,
		Delimiter:       ";",
		TimestampColumn: "edited",
		Columns:         map[string]string{"Spieler": "name", "Verein": "current_club"},
	}

	snap, err := ReadCSV(strings.NewReader(data), spec, 0)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 1)
	row := snap.Rows[0]
	assert.True(t, row.Manual)
	assert.Equal(t, "Müller", row.Fields[player.FieldName])
	assert.Equal(t, "Bayern", row.Fields[player.FieldCurrentClub])
	require.NotNil(t, row.Timestamp)
	assert.Equal(t, time.Unix(1714521600, 0).UTC(), *row.Timestamp)

	_, err = ReadCSV(strings.NewReader(data), Spec{Columns: map[string]string{"Spieler": "shoe_size"}}, 0)
	assert.ErrorContains(t, err, "unknown target")
}

func TestReadCSVEmpty(t *testing.T) {
	snap, err := ReadCSV(strings.NewReader(""), Spec{Name: "empty"}, 0)
	require.NoError(t, err)
	assert.Empty(t, snap.Rows)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"01.05.2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"1714521600000", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
	_, ok := ParseTimestamp("yesterday")
	assert.False(t, ok)
}

// writeLegacyDump creates a small dump shaped like the production one.
func writeLegacyDump(t *testing.T, withOptional bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dev.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE Player (id INTEGER PRIMARY KEY, url TEXT, name TEXT, foot TEXT, date_of_birth INTEGER)`,
		`CREATE TABLE Transfer (id INTEGER PRIMARY KEY, player_id INTEGER, market_value REAL, transfer_date INTEGER, fee TEXT, from_club INTEGER, to_club INTEGER)`,
		`CREATE TABLE YouthClub (id INTEGER PRIMARY KEY, player_id INTEGER, name TEXT)`,
		`INSERT INTO Player VALUES (1, '/robin-van-persie/profil/spieler/108390', 'Robin van Persie', 'left', 428976000000)`,
		`INSERT INTO Player VALUES (2, NULL, 'Nameless Url', NULL, NULL)`,
		`INSERT INTO Player VALUES (3, NULL, NULL, NULL, NULL)`,
		`INSERT INTO Transfer VALUES (1, 1, 25000000, 1341100800000, '€24.00m', 10, 11)`,
		`INSERT INTO Transfer VALUES (2, 1, 15000000, 1093996800000, '€3.50m', 12, 10)`,
		`INSERT INTO Transfer VALUES (3, 2, NULL, 1500000000000, NULL, 12, 99)`,
		`INSERT INTO Transfer VALUES (4, 2, 800000, 1400000000000, NULL, 13, 12)`,
		`INSERT INTO YouthClub VALUES (1, 1, 'Excelsior Rotterdam U19')`,
		`INSERT INTO YouthClub VALUES (2, 1, 'Feyenoord (1997-2004)')`,
	}
	if withOptional {
		stmts = append(stmts,
			`CREATE TABLE Club (id INTEGER PRIMARY KEY, name TEXT, country TEXT, league_name TEXT, league_tier INTEGER)`,
			`CREATE TABLE Citizenship (id INTEGER PRIMARY KEY, player_id INTEGER, country TEXT)`,
			`CREATE TABLE Position (id INTEGER PRIMARY KEY, player_id INTEGER, position TEXT, is_main INTEGER)`,
			`INSERT INTO Club VALUES (10, 'Arsenal FC', 'England', 'Premier League', 1)`,
			`INSERT INTO Club VALUES (11, 'Manchester United', 'England', 'Premier League', 1)`,
			`INSERT INTO Club VALUES (12, 'Feyenoord', 'Netherlands', 'Eredivisie', 1)`,
			`INSERT INTO Club VALUES (13, 'No Country', NULL, NULL, NULL)`,
			`INSERT INTO Citizenship VALUES (1, 1, 'Netherlands')`,
			`INSERT INTO Citizenship VALUES (2, 1, 'Indonesia')`,
			`INSERT INTO Position VALUES (1, 1, 'Second Striker', 0)`,
			`INSERT INTO Position VALUES (2, 1, 'Centre-Forward', 1)`,
		)
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

func TestLoadLegacy(t *testing.T) {
	path := writeLegacyDump(t, true)

	snap, err := LoadLegacy(context.Background(), Spec{Name: "legacy", Path: path}, 4)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2, "a player with neither url nor data is dropped")

	rvp := snap.Rows[0]
	assert.Equal(t, "legacy", rvp.Source)
	assert.Equal(t, 4, rvp.Pass)
	assert.Equal(t, 1, rvp.Line)
	assert.Equal(t, "/robin-van-persie/profil/spieler/108390", rvp.Reference)
	assert.Equal(t, "Robin van Persie", rvp.Fields[player.FieldName])
	assert.Equal(t, "left", rvp.Fields[player.FieldDominantFoot])
	assert.Equal(t, "1983-08-06", rvp.Fields[player.FieldDateOfBirth])
	assert.Equal(t, "25000000", rvp.Fields[player.FieldMarketValue])
	assert.Equal(t, "€24.00m", rvp.Fields[player.FieldLatestFee])
	assert.Equal(t, "2012-07-01", rvp.Fields[player.FieldLatestTransferDate])
	assert.Equal(t, "Manchester United", rvp.Fields[player.FieldCurrentClub])
	assert.Equal(t, "Excelsior Rotterdam U19; Feyenoord (1997-2004)", rvp.Fields[player.FieldYouthClub])
	assert.Equal(t, "Netherlands, Indonesia", rvp.Fields[player.FieldNationality])
	assert.Equal(t, "Centre-Forward", rvp.Fields[player.FieldPosition])
	require.NotNil(t, rvp.Timestamp)
	assert.Equal(t, 2012, rvp.Timestamp.Year())

	other := snap.Rows[1]
	assert.Empty(t, other.Reference)
	assert.Equal(t, "800000", other.Fields[player.FieldMarketValue], "value comes from the newest transfer that has one")
	assert.NotContains(t, other.Fields, player.FieldCurrentClub, "unknown club ids are dropped")

	assert.ElementsMatch(t, []Club{
		{Name: "Arsenal FC", Country: "England"},
		{Name: "Manchester United", Country: "England"},
		{Name: "Feyenoord", Country: "Netherlands"},
	}, snap.Clubs)

	assert.Equal(t, []Transfer{
		{Reference: rvp.Reference, Date: time.Date(2012, 7, 1, 0, 0, 0, 0, time.UTC), FromClub: "Arsenal FC", ToClub: "Manchester United"},
		{Reference: rvp.Reference, Date: time.Date(2004, 9, 1, 0, 0, 0, 0, time.UTC), FromClub: "Feyenoord", ToClub: "Arsenal FC"},
	}, snap.Transfers, "players without a reference have no usable history")
}

func TestLegacyTimeReadsSecondsAndMilliseconds(t *testing.T) {
	dob := time.Date(1983, 8, 6, 0, 0, 0, 0, time.UTC)
	for _, v := range []any{int64(428976000), int64(428976000000), float64(428976000), float64(428976000000), "1983-08-06"} {
		got, ok := legacyTime(v)
		require.True(t, ok, "%v", v)
		assert.Equal(t, dob, got, "%v", v)
	}

	got, ok := legacyTime(int64(-315619200000))
	require.True(t, ok)
	assert.Equal(t, time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), got, "pre-1970 milliseconds")

	_, ok = legacyTime(nil)
	assert.False(t, ok)
}

func TestLoadLegacyWithoutOptionalTables(t *testing.T) {
	path := writeLegacyDump(t, false)

	snap, err := LoadLegacy(context.Background(), Spec{Name: "legacy", Path: path}, 0)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2)
	assert.NotContains(t, snap.Rows[0].Fields, player.FieldNationality)
	assert.NotContains(t, snap.Rows[0].Fields, player.FieldCurrentClub)
	assert.Empty(t, snap.Clubs)
	require.Len(t, snap.Transfers, 2)
	assert.Empty(t, snap.Transfers[0].FromClub)
	assert.Empty(t, snap.Transfers[0].ToClub)
}

func TestLoadLegacyErrors(t *testing.T) {
	_, err := LoadLegacy(context.Background(), Spec{Path: filepath.Join(t.TempDir(), "missing.db")}, 0)
	assert.ErrorContains(t, err, "legacy dump")

	path := filepath.Join(t.TempDir(), "partial.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE Player (id INTEGER PRIMARY KEY, url TEXT, name TEXT, foot TEXT, date_of_birth INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = LoadLegacy(context.Background(), Spec{Path: path}, 0)
	assert.ErrorContains(t, err, "missing table Transfer")
}

func TestLoadFollowsManifestOrder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("name\nAlpha\n"), 0o644))
	writeDump := writeLegacyDump(t, false)
	require.NoError(t, os.Rename(writeDump, filepath.Join(dir, "dev.db")))

	m, err := ParseManifest([]byte(`
[[snapshot]]
name = "a"
path = "a.csv"

[[snapshot]]
name = "legacy"
path = "dev.db"
`), dir)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	snaps, err := Load(context.Background(), m, logger)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 0, snaps[0].Pass)
	assert.Equal(t, 1, snaps[1].Pass)
	assert.Equal(t, 1, snaps[1].Rows[0].Pass)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Load(ctx, m, logger)
	assert.ErrorIs(t, err, context.Canceled)
}
