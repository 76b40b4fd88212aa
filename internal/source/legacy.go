package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Legacy dump queries. Transfers are newest first per player; the first
// transfer carrying a market value supplies it. Club columns are formatted in
// as NULL when the dump has no Club table.
const (
	legacyPlayersSQL = `SELECT id, url, name, foot, date_of_birth FROM Player ORDER BY id`

	legacyTransfersSQL = `
		SELECT t.player_id, t.market_value, t.transfer_date, t.fee, %s, %s
		FROM Transfer t %s
		ORDER BY t.player_id, t.transfer_date DESC`

	legacyYouthSQL       = `SELECT player_id, name FROM YouthClub ORDER BY player_id, rowid`
	legacyCitizenshipSQL = `SELECT player_id, country FROM Citizenship ORDER BY player_id, rowid`
	legacyPositionSQL    = `SELECT player_id, position FROM Position ORDER BY player_id, is_main DESC, rowid`
	legacyClubsSQL       = `SELECT name, country FROM Club WHERE name IS NOT NULL ORDER BY id`
)

// legacyPlayer accumulates one player's row across the dump's tables.
type legacyPlayer struct {
	row         player.SourceRow
	youth       []string
	citizenship []string
	hasTransfer bool
}

// LoadLegacy reads a legacy relational dump (SQLite) into one SourceRow per
// player. Player, Transfer and YouthClub are required; Citizenship, Position
// and Club are used when present.
func LoadLegacy(ctx context.Context, spec Spec, pass int) (Snapshot, error) {
	if _, err := os.Stat(spec.Path); err != nil {
		return Snapshot{}, fmt.Errorf("legacy dump: %w", err)
	}
	db, err := sql.Open("sqlite", spec.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open sqlite db: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return Snapshot{}, fmt.Errorf("apply pragma: %w", err)
	}
	return readLegacy(ctx, db, spec, pass)
}

func readLegacy(ctx context.Context, db *sql.DB, spec Spec, pass int) (Snapshot, error) {
	snap := Snapshot{Name: spec.Name, Pass: pass, Manual: spec.Manual}

	tables, err := legacyTables(ctx, db)
	if err != nil {
		return Snapshot{}, err
	}
	for _, required := range []string{"Player", "Transfer", "YouthClub"} {
		if !tables[required] {
			return Snapshot{}, fmt.Errorf("legacy dump is missing table %s", required)
		}
	}

	players := make(map[int64]*legacyPlayer)
	var order []int64

	rows, err := db.QueryContext(ctx, legacyPlayersSQL)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query players: %w", err)
	}
	line := 0
	for rows.Next() {
		var (
			id              int64
			url, name, foot sql.NullString
			dob             any
		)
		if err := rows.Scan(&id, &url, &name, &foot, &dob); err != nil {
			rows.Close()
			return Snapshot{}, fmt.Errorf("scan player: %w", err)
		}
		line++
		row := player.SourceRow{
			Source:    spec.Name,
			Pass:      pass,
			Line:      line,
			Manual:    spec.Manual,
			Reference: strings.TrimSpace(url.String),
			Fields:    make(map[player.Field]string),
		}
		setField(row.Fields, player.FieldName, name.String)
		setField(row.Fields, player.FieldDominantFoot, foot.String)
		if t, ok := legacyTime(dob); ok {
			row.Fields[player.FieldDateOfBirth] = t.Format("2006-01-02")
		}
		players[id] = &legacyPlayer{row: row}
		order = append(order, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return Snapshot{}, fmt.Errorf("iterate players: %w", err)
	}
	rows.Close()

	snap.Transfers, err = readTransfers(ctx, db, tables["Club"], players)
	if err != nil {
		return Snapshot{}, err
	}

	err = eachPair(ctx, db, legacyYouthSQL, func(id int64, club string) {
		if p := players[id]; p != nil {
			p.youth = append(p.youth, club)
		}
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("youth clubs: %w", err)
	}

	if tables["Citizenship"] {
		err = eachPair(ctx, db, legacyCitizenshipSQL, func(id int64, country string) {
			if p := players[id]; p != nil {
				p.citizenship = append(p.citizenship, country)
			}
		})
		if err != nil {
			return Snapshot{}, fmt.Errorf("citizenship: %w", err)
		}
	}

	if tables["Position"] {
		err = eachPair(ctx, db, legacyPositionSQL, func(id int64, position string) {
			if p := players[id]; p != nil {
				if _, ok := p.row.Fields[player.FieldPosition]; !ok {
					p.row.Fields[player.FieldPosition] = position
				}
			}
		})
		if err != nil {
			return Snapshot{}, fmt.Errorf("positions: %w", err)
		}
	}

	if tables["Club"] {
		clubs, err := db.QueryContext(ctx, legacyClubsSQL)
		if err != nil {
			return Snapshot{}, fmt.Errorf("query clubs: %w", err)
		}
		for clubs.Next() {
			var name, country sql.NullString
			if err := clubs.Scan(&name, &country); err != nil {
				clubs.Close()
				return Snapshot{}, fmt.Errorf("scan club: %w", err)
			}
			if country.String != "" {
				snap.Clubs = append(snap.Clubs, Club{Name: name.String, Country: country.String})
			}
		}
		err = clubs.Err()
		clubs.Close()
		if err != nil {
			return Snapshot{}, fmt.Errorf("iterate clubs: %w", err)
		}
	}

	for _, id := range order {
		p := players[id]
		if len(p.youth) > 0 {
			p.row.Fields[player.FieldYouthClub] = strings.Join(p.youth, "; ")
		}
		if len(p.citizenship) > 0 {
			p.row.Fields[player.FieldNationality] = strings.Join(p.citizenship, ", ")
		}
		if len(p.row.Fields) == 0 && p.row.Reference == "" {
			continue
		}
		snap.Rows = append(snap.Rows, p.row)
	}
	return snap, nil
}

// readTransfers fills the latest-transfer fields of each player and returns
// the full history of players that have a profile reference.
func readTransfers(ctx context.Context, db *sql.DB, hasClubs bool, players map[int64]*legacyPlayer) ([]Transfer, error) {
	fromCol, toCol, join := "NULL", "NULL", ""
	if hasClubs {
		fromCol, toCol = "cf.name", "ct.name"
		join = "LEFT JOIN Club cf ON t.from_club = cf.id LEFT JOIN Club ct ON t.to_club = ct.id"
	}
	rows, err := db.QueryContext(ctx, fmt.Sprintf(legacyTransfersSQL, fromCol, toCol, join))
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	var history []Transfer
	for rows.Next() {
		var (
			id               int64
			value, date, fee any
			fromClub, toClub sql.NullString
		)
		if err := rows.Scan(&id, &value, &date, &fee, &fromClub, &toClub); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		p := players[id]
		if p == nil {
			continue
		}
		when, hasDate := legacyTime(date)
		if hasDate && p.row.Reference != "" {
			history = append(history, Transfer{
				Reference: p.row.Reference,
				Date:      when,
				FromClub:  strings.TrimSpace(fromClub.String),
				ToClub:    strings.TrimSpace(toClub.String),
			})
		}
		fields := p.row.Fields
		if !p.hasTransfer {
			p.hasTransfer = true
			if hasDate {
				fields[player.FieldLatestTransferDate] = when.Format("2006-01-02")
				p.row.Timestamp = &when
			}
			setField(fields, player.FieldLatestFee, legacyText(fee))
			setField(fields, player.FieldCurrentClub, toClub.String)
		}
		if _, ok := fields[player.FieldMarketValue]; !ok {
			setField(fields, player.FieldMarketValue, legacyText(value))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return history, nil
}

func eachPair(ctx context.Context, db *sql.DB, query string, fn func(id int64, value string)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id    int64
			value sql.NullString
		)
		if err := rows.Scan(&id, &value); err != nil {
			return err
		}
		if v := strings.TrimSpace(value.String); v != "" {
			fn(id, v)
		}
	}
	return rows.Err()
}

func legacyTables(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()
	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func setField(fields map[player.Field]string, f player.Field, v string) {
	if v = cleanCell(v); v != "" {
		fields[f] = v
	}
}

// legacyText renders a dynamically typed column. Floats are written without
// exponent so monetary values stay plain numbers.
func legacyText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return decimal.NewFromFloat(x).String()
	case []byte:
		return string(x)
	case string:
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// legacyTime reads dates stored as epoch seconds or milliseconds, or as text.
func legacyTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case int64:
		return unixTime(x), true
	case float64:
		return unixTime(int64(x)), true
	case time.Time:
		return x.UTC(), true
	case []byte:
		return ParseTimestamp(string(x))
	case string:
		return ParseTimestamp(x)
	default:
		return time.Time{}, false
	}
}
