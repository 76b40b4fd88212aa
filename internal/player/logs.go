package player

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ParseFailure records a row or text fragment that could not be fully
// interpreted. It never aborts a run.
type ParseFailure struct {
	Reference string // source row reference, "<source>:<line>" when no URL
	RawText   string
	Reason    string
}

// Correction actions written to the audit log.
const (
	ActionDivided          = "divided"
	ActionAlreadyCorrected = "already_corrected"
	ActionNormalized       = "normalized"
)

// Correction is one CorrectionAudit entry. Original and Corrected make every
// scale correction reversible.
type Correction struct {
	ID        CanonicalID
	Field     Field
	Original  decimal.Decimal
	Corrected decimal.Decimal
	Action    string
}

// Review kinds.
const (
	ReviewFieldConflict  = "field_conflict"
	ReviewNameCollision  = "name_collision"
	ReviewAmbiguousName  = "ambiguous_name"
	ReviewScaleStillHigh = "scale_still_high"
)

// ReviewItem is something a human should look at. Field is empty for
// record-level items.
type ReviewItem struct {
	ID     CanonicalID
	Field  Field
	Kind   string
	Detail string
}

// DuplicateIDError reports a repeated CanonicalID after deduplication. It
// indicates a logic defect, so the pipeline aborts on it.
type DuplicateIDError struct {
	ID    CanonicalID
	Stage string
}

func (e *DuplicateIDError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("duplicate canonical id %s after deduplication", e.ID)
	}
	return fmt.Sprintf("duplicate canonical id %s after deduplication (%s)", e.ID, e.Stage)
}

// RowReference identifies a source row in logs. The profile reference wins
// when present.
func RowReference(row SourceRow) string {
	if row.Reference != "" {
		return row.Reference
	}
	return fmt.Sprintf("%s:%d", row.Source, row.Line)
}
