package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Column targets besides the canonical fields.
const (
	targetReference = "reference"
	targetTimestamp = "timestamp"
	targetIgnore    = "ignore"
)

// defaultAliases maps the headers the exports and scraper progress files use
// onto canonical fields. Keys are lower case.
var defaultAliases = map[string]string{
	"name":                 string(player.FieldName),
	"full_name":            string(player.FieldName),
	"player_name":          string(player.FieldName),
	"player":               string(player.FieldName),
	"url":                  targetReference,
	"profile_url":          targetReference,
	"player_url":           targetReference,
	"reference":            targetReference,
	"team":                 string(player.FieldTeam),
	"team_name":            string(player.FieldTeam),
	"competition":          string(player.FieldCompetition),
	"league":               string(player.FieldCompetition),
	"league_name":          string(player.FieldCompetition),
	"season":               string(player.FieldSeason),
	"nationality":          string(player.FieldNationality),
	"citizenship":          string(player.FieldNationality),
	"position":             string(player.FieldPosition),
	"main_position":        string(player.FieldPosition),
	"market_value":         string(player.FieldMarketValue),
	"latest_market_value":  string(player.FieldMarketValue),
	"date_of_birth":        string(player.FieldDateOfBirth),
	"dob":                  string(player.FieldDateOfBirth),
	"birth_date":           string(player.FieldDateOfBirth),
	"place_of_birth":       string(player.FieldPlaceOfBirth),
	"city_of_birth":        string(player.FieldPlaceOfBirth),
	"country_of_birth":     string(player.FieldCountryOfBirth),
	"dominant_foot":        string(player.FieldDominantFoot),
	"foot":                 string(player.FieldDominantFoot),
	"agent":                string(player.FieldAgent),
	"player_agent":         string(player.FieldAgent),
	"current_club":         string(player.FieldCurrentClub),
	"youth_club":           string(player.FieldYouthClub),
	"youth_clubs":          string(player.FieldYouthClub),
	"latest_transfer_date": string(player.FieldLatestTransferDate),
	"transfer_date":        string(player.FieldLatestTransferDate),
	"latest_fee":           string(player.FieldLatestFee),
	"fee":                  string(player.FieldLatestFee),
	"social_links":         string(player.FieldSocialLinks),
	"social_media":         string(player.FieldSocialLinks),
	"scraped_at":           targetTimestamp,
	"updated_at":           targetTimestamp,
	"timestamp":            targetTimestamp,
}

// placeholders are cell values the scrapers write for "no data".
var placeholders = map[string]bool{
	"-": true, "?": true, "n/a": true, "null": true, "none": true, "nan": true,
}

// LoadCSV reads a CSV snapshot with a header row.
func LoadCSV(spec Spec, pass int) (Snapshot, error) {
	f, err := os.Open(spec.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, spec, pass)
}

// ReadCSV parses CSV snapshot content. Unknown columns are ignored; rows
// that carry no value at all are skipped.
func ReadCSV(r io.Reader, spec Spec, pass int) (Snapshot, error) {
	snap := Snapshot{Name: spec.Name, Pass: pass, Manual: spec.Manual}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	if spec.Delimiter != "" {
		cr.Comma = []rune(spec.Delimiter)[0]
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return snap, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read header: %w", err)
	}
	targets, err := columnTargets(header, spec)
	if err != nil {
		return Snapshot{}, err
	}

	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				snap.Failures = append(snap.Failures, player.ParseFailure{
					Reference: fmt.Sprintf("%s:%d", spec.Name, perr.StartLine),
					Reason:    "malformed csv row: " + perr.Err.Error(),
				})
				continue
			}
			return Snapshot{}, fmt.Errorf("read row: %w", err)
		}
		line++

		row := player.SourceRow{
			Source: spec.Name,
			Pass:   pass,
			Line:   line,
			Manual: spec.Manual,
			Fields: make(map[player.Field]string),
		}
		for i, cell := range rec {
			if i >= len(targets) || targets[i] == "" {
				continue
			}
			v := cleanCell(cell)
			if v == "" {
				continue
			}
			switch targets[i] {
			case targetReference:
				row.Reference = v
			case targetTimestamp:
				ts, ok := ParseTimestamp(v)
				if !ok {
					snap.Failures = append(snap.Failures, player.ParseFailure{
						Reference: player.RowReference(row),
						RawText:   v,
						Reason:    "unparseable timestamp",
					})
					continue
				}
				row.Timestamp = &ts
			default:
				row.Fields[player.Field(targets[i])] = v
			}
		}
		if len(row.Fields) == 0 && row.Reference == "" {
			continue
		}
		snap.Rows = append(snap.Rows, row)
	}
	return snap, nil
}

// columnTargets resolves each header to a field name, reference, timestamp,
// or "" for ignored columns. Manifest overrides win over the alias table.
func columnTargets(header []string, spec Spec) ([]string, error) {
	overrides := make(map[string]string, len(spec.Columns))
	for col, target := range spec.Columns {
		target = strings.ToLower(strings.TrimSpace(target))
		if target != targetReference && target != targetTimestamp && target != targetIgnore &&
			!player.Field(target).IsKnown() {
			return nil, fmt.Errorf("column %q maps to unknown target %q", col, target)
		}
		overrides[strings.ToLower(strings.TrimSpace(col))] = target
	}

	tsColumn := strings.ToLower(strings.TrimSpace(spec.TimestampColumn))
	targets := make([]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		target, ok := overrides[key]
		if !ok {
			target = defaultAliases[key]
		}
		if tsColumn != "" {
			switch {
			case key == tsColumn:
				target = targetTimestamp
			case target == targetTimestamp:
				target = ""
			}
		}
		if target == targetIgnore {
			target = ""
		}
		targets[i] = target
	}
	return targets, nil
}

func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if placeholders[strings.ToLower(s)] {
		return ""
	}
	return s
}

// unixTime reads an epoch number. Magnitudes above 1e10 are milliseconds:
// as seconds they would lie past the year 2286.
func unixTime(n int64) time.Time {
	if n > 1e10 || n < -1e10 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006",
}

// ParseTimestamp accepts the layouts the sources write plus unix seconds or
// milliseconds. Times without a zone are UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixTime(n), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
