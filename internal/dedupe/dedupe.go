// Package dedupe collapses player records that share a canonical id.
package dedupe

import (
	"sort"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Collapse returns exactly one record per canonical id.
//
// Within a group the representative is the record with the most recent
// Timestamp. Records without a timestamp rank below every record that has one,
// and ties fall back to Line, the record's original input position. Null fields
// of the representative are back-filled from the other members in rank order.
// Output order follows each id's first appearance in the input.
func Collapse(records []player.PlayerRecord) []player.PlayerRecord {
	groups := make(map[player.CanonicalID][]player.PlayerRecord)
	var order []player.CanonicalID
	for _, rec := range records {
		if _, seen := groups[rec.ID]; !seen {
			order = append(order, rec.ID)
		}
		groups[rec.ID] = append(groups[rec.ID], rec)
	}

	out := make([]player.PlayerRecord, 0, len(order))
	for _, id := range order {
		members := groups[id]
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}
		Rank(members)
		rep := members[0].Clone()
		for _, other := range members[1:] {
			for f, v := range other.Fields {
				if _, ok := rep.Fields[f]; !ok {
					rep.Fields[f] = v
				}
			}
			if rep.Reference == "" {
				rep.Reference = other.Reference
			}
			if len(rep.Stints) == 0 && len(other.Stints) > 0 {
				rep.Stints = append([]player.CareerStint(nil), other.Stints...)
			}
		}
		out = append(out, rep)
	}
	return out
}

// Rank sorts records from most to least preferred: newest timestamp first,
// untimestamped records last, ties by input line.
func Rank(records []player.PlayerRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		switch {
		case a.Timestamp != nil && b.Timestamp == nil:
			return true
		case a.Timestamp == nil && b.Timestamp != nil:
			return false
		case a.Timestamp != nil && b.Timestamp != nil && !a.Timestamp.Equal(*b.Timestamp):
			return a.Timestamp.After(*b.Timestamp)
		}
		return a.Line < b.Line
	})
}

// AssertUnique returns a *player.DuplicateIDError for the first canonical id
// that appears more than once. Callers treat it as fatal.
func AssertUnique(records []player.PlayerRecord, stage string) error {
	seen := make(map[player.CanonicalID]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup {
			return &player.DuplicateIDError{ID: rec.ID, Stage: stage}
		}
		seen[rec.ID] = struct{}{}
	}
	return nil
}
