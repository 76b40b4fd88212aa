// Package player defines the canonical data types every pipeline stage reads
// and writes. Loaders produce SourceRows, the resolver attaches CanonicalIDs,
// and the merge/dedupe/career/scale stages refine PlayerRecords into a Dataset.
//
// Adding a new source means producing SourceRows. The stages and the output
// schema never change.
package player

import (
	"sort"
	"time"
)

// Field names one column of the canonical player schema.
type Field string

const (
	FieldName               Field = "name"
	FieldTeam               Field = "team"
	FieldCompetition        Field = "competition"
	FieldSeason             Field = "season"
	FieldNationality        Field = "nationality"
	FieldPosition           Field = "position"
	FieldMarketValue        Field = "market_value"
	FieldDateOfBirth        Field = "date_of_birth"
	FieldPlaceOfBirth       Field = "place_of_birth"
	FieldCountryOfBirth     Field = "country_of_birth"
	FieldDominantFoot       Field = "dominant_foot"
	FieldAgent              Field = "agent"
	FieldCurrentClub        Field = "current_club"
	FieldYouthClub          Field = "youth_club"
	FieldLatestTransferDate Field = "latest_transfer_date"
	FieldLatestFee          Field = "latest_fee"
	FieldSocialLinks        Field = "social_links"
)

// Fields is the fixed column set in output order.
var Fields = []Field{
	FieldName,
	FieldTeam,
	FieldCompetition,
	FieldSeason,
	FieldNationality,
	FieldPosition,
	FieldMarketValue,
	FieldDateOfBirth,
	FieldPlaceOfBirth,
	FieldCountryOfBirth,
	FieldDominantFoot,
	FieldAgent,
	FieldCurrentClub,
	FieldYouthClub,
	FieldLatestTransferDate,
	FieldLatestFee,
	FieldSocialLinks,
}

// IsKnown reports whether f is part of the fixed schema.
func (f Field) IsKnown() bool {
	for _, k := range Fields {
		if k == f {
			return true
		}
	}
	return false
}

// SourceRow is one record from one source pass. Loaders create it and nothing
// mutates it afterwards.
type SourceRow struct {
	Source    string           // snapshot name from the manifest
	Pass      int              // position of the snapshot in the manifest
	Line      int              // ordinal of the row inside its snapshot
	Manual    bool             // row belongs to a manual-correction pass
	Reference string           // URL-like profile reference, may be empty
	Timestamp *time.Time       // explicit recency marker, may be nil
	Fields    map[Field]string // only non-empty values are stored
}

// Get returns the trimmed value of f and whether it was present.
func (r SourceRow) Get(f Field) (string, bool) {
	v, ok := r.Fields[f]
	return v, ok && v != ""
}

// Value is a non-null field value tagged with the pass that contributed it.
type Value struct {
	Raw    string `json:"value"`
	Source string `json:"source"`
	Pass   int    `json:"pass"`
}

// CareerStint is one career affiliation extracted from free text.
// When From and To are both set, Duration = To - From and is never negative,
// except that a lone year is a one-year stint. Estimated stints take their
// Duration, or the club itself, from the player's transfer history.
type CareerStint struct {
	Club      string `json:"club"`
	From      *int   `json:"from_year,omitempty"`
	To        *int   `json:"to_year,omitempty"`
	Duration  *int   `json:"duration_years,omitempty"`
	Raw       string `json:"raw_text"`
	Country   string `json:"country,omitempty"`
	Estimated bool   `json:"estimated,omitempty"`
}

// PlayerRecord is the canonical entity for one CanonicalID.
type PlayerRecord struct {
	ID        CanonicalID
	Reference string
	Fields    map[Field]Value
	Stints    []CareerStint

	// Provenance of the record itself, used for recency ranking.
	Timestamp *time.Time
	Source    string
	Pass      int
	Line      int
}

// NewRecord builds a record from a resolved source row, tagging every field
// with the row's source and pass.
func NewRecord(id CanonicalID, row SourceRow) PlayerRecord {
	rec := PlayerRecord{
		ID:        id,
		Reference: row.Reference,
		Fields:    make(map[Field]Value, len(row.Fields)),
		Timestamp: row.Timestamp,
		Source:    row.Source,
		Pass:      row.Pass,
		Line:      row.Line,
	}
	for f, raw := range row.Fields {
		if raw == "" {
			continue
		}
		rec.Fields[f] = Value{Raw: raw, Source: row.Source, Pass: row.Pass}
	}
	return rec
}

// Get returns the raw value of f, or "" when null.
func (r PlayerRecord) Get(f Field) string {
	return r.Fields[f].Raw
}

// Has reports whether f is non-null.
func (r PlayerRecord) Has(f Field) bool {
	_, ok := r.Fields[f]
	return ok
}

// Clone returns a deep copy so stages never share field maps.
func (r PlayerRecord) Clone() PlayerRecord {
	out := r
	out.Fields = make(map[Field]Value, len(r.Fields))
	for f, v := range r.Fields {
		out.Fields[f] = v
	}
	if r.Stints != nil {
		out.Stints = append([]CareerStint(nil), r.Stints...)
	}
	return out
}

// Dataset is the pipeline output: one record per CanonicalID plus every
// non-fatal condition encountered while building it.
type Dataset struct {
	Records     []PlayerRecord
	Failures    []ParseFailure
	Corrections []Correction
	Review      []ReviewItem
}

// SortRecords orders records by canonical id string.
func SortRecords(records []PlayerRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ID.Less(records[j].ID)
	})
}
