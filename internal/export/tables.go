// Package export writes a canonical dataset and its logs to disk as CSV
// artifacts and, optionally, one XLSX workbook.
package export

import (
	"strconv"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Artifact file names.
const (
	PlayersFile     = "players.csv"
	FailuresFile    = "parse_failures.csv"
	AuditFile       = "correction_audit.csv"
	StintsFile      = "career_stints.csv"
	ReviewFile      = "manual_review.csv"
	ProvenanceFile  = "field_provenance.csv"
	WorkbookFile    = "canonical.xlsx"
	RunMetadataFile = "run.toml"
)

// Table is one tabular artifact.
type Table struct {
	File   string
	Sheet  string
	Header []string
	Rows   [][]string
}

// Tables renders every artifact of a dataset in output order.
func Tables(ds player.Dataset) []Table {
	return []Table{
		PlayersTable(ds.Records),
		FailuresTable(ds.Failures),
		AuditTable(ds.Corrections),
		StintsTable(ds.Records),
		ReviewTable(ds.Review),
		ProvenanceTable(ds.Records),
	}
}

// PlayersTable is the canonical dataset: one row per id, fixed columns.
func PlayersTable(records []player.PlayerRecord) Table {
	header := make([]string, 0, len(player.Fields)+2)
	header = append(header, "canonical_id", "profile_reference")
	for _, f := range player.Fields {
		header = append(header, string(f))
	}
	t := Table{File: PlayersFile, Sheet: "players", Header: header}
	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.ID.String(), rec.Reference)
		for _, f := range player.Fields {
			row = append(row, rec.Get(f))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func FailuresTable(failures []player.ParseFailure) Table {
	t := Table{File: FailuresFile, Sheet: "parse_failures", Header: []string{"source_row_reference", "raw_text", "reason"}}
	for _, f := range failures {
		t.Rows = append(t.Rows, []string{f.Reference, f.RawText, f.Reason})
	}
	return t
}

// AuditTable is the correction audit. The action column is the only
// addition to the four reversible-correction columns.
func AuditTable(corrections []player.Correction) Table {
	t := Table{
		File:   AuditFile,
		Sheet:  "correction_audit",
		Header: []string{"canonical_id", "field_name", "original_value", "corrected_value", "action"},
	}
	for _, c := range corrections {
		t.Rows = append(t.Rows, []string{
			c.ID.String(), string(c.Field),
			player.FormatMoney(c.Original), player.FormatMoney(c.Corrected),
			c.Action,
		})
	}
	return t
}

func StintsTable(records []player.PlayerRecord) Table {
	t := Table{
		File:   StintsFile,
		Sheet:  "career_stints",
		Header: []string{"canonical_id", "club", "from_year", "to_year", "duration_years", "country", "raw_text", "estimated"},
	}
	for _, rec := range records {
		for _, s := range rec.Stints {
			t.Rows = append(t.Rows, []string{
				rec.ID.String(), s.Club, optInt(s.From), optInt(s.To), optInt(s.Duration), s.Country, s.Raw,
				strconv.FormatBool(s.Estimated),
			})
		}
	}
	return t
}

func ReviewTable(items []player.ReviewItem) Table {
	t := Table{File: ReviewFile, Sheet: "manual_review", Header: []string{"canonical_id", "field_name", "kind", "detail"}}
	for _, r := range items {
		t.Rows = append(t.Rows, []string{r.ID.String(), string(r.Field), r.Kind, r.Detail})
	}
	return t
}

// ProvenanceTable lists which snapshot and pass supplied every field value.
func ProvenanceTable(records []player.PlayerRecord) Table {
	t := Table{
		File:   ProvenanceFile,
		Sheet:  "field_provenance",
		Header: []string{"canonical_id", "field_name", "source", "pass"},
	}
	for _, rec := range records {
		for _, f := range player.Fields {
			v, ok := rec.Fields[f]
			if !ok {
				continue
			}
			t.Rows = append(t.Rows, []string{rec.ID.String(), string(f), v.Source, strconv.Itoa(v.Pass)})
		}
	}
	return t
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
