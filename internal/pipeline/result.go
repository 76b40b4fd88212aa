package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Stats tracks counts from one run.
type Stats struct {
	Snapshots   int
	Rows        int
	ByReference int
	ByNameMatch int
	Synthetic   int
	Unresolved  int
	Records     int
	Stints      int
	Divided     int
	Duration    time.Duration
}

// Result is the outcome of a run. Non-fatal conditions live in the Dataset
// logs; fatal ones are returned from Run instead.
type Result struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Dataset   player.Dataset
	Stats     Stats
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	return fmt.Sprintf(
		"snapshots=%d rows=%d records=%d by_reference=%d by_name=%d synthetic=%d unresolved=%d "+
			"stints=%d divided=%d failures=%d corrections=%d review=%d",
		r.Stats.Snapshots, r.Stats.Rows, r.Stats.Records,
		r.Stats.ByReference, r.Stats.ByNameMatch, r.Stats.Synthetic, r.Stats.Unresolved,
		r.Stats.Stints, r.Stats.Divided,
		len(r.Dataset.Failures), len(r.Dataset.Corrections), len(r.Dataset.Review),
	)
}
