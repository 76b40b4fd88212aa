package merge

import (
	"fmt"
	"sort"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Pass is one enrichment pass: at most one record per canonical id.
type Pass struct {
	Name    string
	Manual  bool
	Records []player.PlayerRecord
}

// Result is the merged output. Records are sorted by canonical id.
type Result struct {
	Records []player.PlayerRecord
	Review  []player.ReviewItem
}

// Merger folds passes into one record per canonical id.
type Merger struct {
	policy Policy
}

// NewMerger creates a merger for a policy.
func NewMerger(policy Policy) *Merger {
	return &Merger{policy: policy}
}

type mergeState struct {
	rec    player.PlayerRecord
	manual map[player.Field]bool
}

// Merge applies passes in the given order. The result depends only on the
// order of passes, never on record order inside a pass. A repeated id inside
// one pass is a *player.DuplicateIDError.
func (m *Merger) Merge(passes []Pass) (Result, error) {
	states := make(map[player.CanonicalID]*mergeState)
	var review []player.ReviewItem

	for _, pass := range passes {
		seen := make(map[player.CanonicalID]struct{}, len(pass.Records))
		for _, rec := range pass.Records {
			if _, dup := seen[rec.ID]; dup {
				return Result{}, &player.DuplicateIDError{ID: rec.ID, Stage: "merge pass " + pass.Name}
			}
			seen[rec.ID] = struct{}{}

			st, ok := states[rec.ID]
			if !ok {
				st = &mergeState{rec: rec.Clone(), manual: make(map[player.Field]bool)}
				if pass.Manual {
					for f := range rec.Fields {
						st.manual[f] = true
					}
				}
				states[rec.ID] = st
				continue
			}
			review = append(review, m.apply(st, rec, pass.Manual)...)
		}
	}

	out := make([]player.PlayerRecord, 0, len(states))
	for _, st := range states {
		out = append(out, st.rec)
	}
	player.SortRecords(out)
	sortReview(review)
	return Result{Records: out, Review: review}, nil
}

// apply folds one pass's record into the accumulated state.
func (m *Merger) apply(st *mergeState, rec player.PlayerRecord, manual bool) []player.ReviewItem {
	var review []player.ReviewItem
	cur := &st.rec

	for _, f := range sortedFields(rec.Fields) {
		v := rec.Fields[f]
		existing, has := cur.Fields[f]
		switch {
		case !has:
			cur.Fields[f] = v
			if manual {
				st.manual[f] = true
			}
		case manual:
			cur.Fields[f] = v
			st.manual[f] = true
		case st.manual[f]:
			// manual corrections are final
		default:
			rule, ok := m.policy.Rule(f)
			switch {
			case !ok:
				if existing.Raw != v.Raw {
					review = append(review, player.ReviewItem{
						ID:    cur.ID,
						Field: f,
						Kind:  player.ReviewFieldConflict,
						Detail: fmt.Sprintf("no precedence rule: kept %q from %s (pass %d), %s (pass %d) has %q",
							existing.Raw, existing.Source, existing.Pass, v.Source, v.Pass, v.Raw),
					})
				}
			case rule == LatestNonNull:
				cur.Fields[f] = v
			case rule == FirstNonNull:
				// identifying value already set
			}
		}
	}

	if cur.Reference == "" {
		cur.Reference = rec.Reference
	}
	if rec.Timestamp != nil && (cur.Timestamp == nil || rec.Timestamp.After(*cur.Timestamp)) {
		cur.Timestamp = rec.Timestamp
	}
	return review
}

func sortedFields(m map[player.Field]player.Value) []player.Field {
	fields := make([]player.Field, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

func sortReview(items []player.ReviewItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ID != items[j].ID {
			return items[i].ID.Less(items[j].ID)
		}
		if items[i].Field != items[j].Field {
			return items[i].Field < items[j].Field
		}
		return items[i].Detail < items[j].Detail
	})
}
