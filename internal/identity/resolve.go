package identity

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Method records how a row obtained its canonical id.
type Method string

const (
	MethodReference     Method = "reference"
	MethodNameMatch     Method = "name_match"
	MethodNameSynthetic Method = "name_synthetic"
)

// Assignment binds one source row to its canonical id.
type Assignment struct {
	Row    player.SourceRow
	ID     player.CanonicalID
	Method Method
}

// Resolution is the outcome of resolving a batch of rows. Rows that could not
// be resolved are absent from Assigned and listed in Failures.
type Resolution struct {
	Assigned []Assignment
	Failures []player.ParseFailure
	Review   []player.ReviewItem
}

// Options tune the name phase.
type Options struct {
	// MaxNameGroup flags a synthetic identity for review when a single pass
	// contributes more than this many rows to it. Zero disables the check.
	MaxNameGroup int

	// RequireBirthYear gates name matching on equal birth years whenever both
	// sides have one, and splits synthetic identities by birth year.
	RequireBirthYear bool
}

// Resolver assigns canonical ids to source rows.
type Resolver struct {
	extractor *Extractor
	opts      Options
}

// NewResolver creates a resolver around an extractor.
func NewResolver(extractor *Extractor, opts Options) *Resolver {
	if extractor == nil {
		extractor = NewExtractor()
	}
	return &Resolver{extractor: extractor, opts: opts}
}

// nameCandidate is an id-phase identity reachable through a normalized name.
type nameCandidate struct {
	id    player.CanonicalID
	years map[int]bool
}

// Resolve runs the id phase over every row, then the name phase over the
// rows the id phase could not place. Assigned keeps the input row order.
func (r *Resolver) Resolve(rows []player.SourceRow) Resolution {
	var res Resolution
	slots := make([]*Assignment, len(rows))

	// Phase 1: reference ids. Final for every row that yields one.
	byName := make(map[string]map[player.CanonicalID]*nameCandidate)
	var pending []int
	for i, row := range rows {
		id, ok := r.extractor.Extract(row.Reference)
		if !ok {
			pending = append(pending, i)
			continue
		}
		slots[i] = &Assignment{Row: row, ID: id, Method: MethodReference}

		name := NormalizeName(row.Fields[player.FieldName])
		if name == "" {
			continue
		}
		if byName[name] == nil {
			byName[name] = make(map[player.CanonicalID]*nameCandidate)
		}
		c := byName[name][id]
		if c == nil {
			c = &nameCandidate{id: id, years: make(map[int]bool)}
			byName[name][id] = c
		}
		if y := BirthYear(row.Fields[player.FieldDateOfBirth]); y != 0 {
			c.years[y] = true
		}
	}

	// Phase 2: names, only among rows still unresolved.
	groups := make(map[string][]int)
	for _, i := range pending {
		row := rows[i]
		name := NormalizeName(row.Fields[player.FieldName])
		if name == "" {
			res.Failures = append(res.Failures, player.ParseFailure{
				Reference: player.RowReference(row),
				RawText:   row.Reference,
				Reason:    "unresolvable identifier: no usable reference or name",
			})
			continue
		}
		year := BirthYear(row.Fields[player.FieldDateOfBirth])

		matches := r.candidates(byName[name], year)
		switch len(matches) {
		case 1:
			slots[i] = &Assignment{Row: row, ID: matches[0], Method: MethodNameMatch}
			continue
		case 0:
		default:
			ids := make([]string, len(matches))
			for k, m := range matches {
				ids[k] = m.String()
			}
			key := r.syntheticKey(name, year)
			res.Review = append(res.Review, player.ReviewItem{
				ID:     player.SyntheticID(key),
				Field:  player.FieldName,
				Kind:   player.ReviewAmbiguousName,
				Detail: fmt.Sprintf("row %s name %q matches ids %s", player.RowReference(row), name, strings.Join(ids, ",")),
			})
		}
		key := r.syntheticKey(name, year)
		groups[key] = append(groups[key], i)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		id := player.SyntheticID(key)
		perPass := make(map[int]int)
		for _, i := range groups[key] {
			slots[i] = &Assignment{Row: rows[i], ID: id, Method: MethodNameSynthetic}
			perPass[rows[i].Pass]++
		}
		if r.opts.MaxNameGroup <= 0 {
			continue
		}
		for _, pass := range sortedKeys(perPass) {
			if n := perPass[pass]; n > r.opts.MaxNameGroup {
				res.Review = append(res.Review, player.ReviewItem{
					ID:     id,
					Field:  player.FieldName,
					Kind:   player.ReviewNameCollision,
					Detail: fmt.Sprintf("%d rows in pass %d share name key %q", n, pass, key),
				})
			}
		}
	}

	res.Assigned = make([]Assignment, 0, len(rows))
	for _, a := range slots {
		if a != nil {
			res.Assigned = append(res.Assigned, *a)
		}
	}
	return res
}

// candidates returns the id-phase identities a name can attach to, sorted.
func (r *Resolver) candidates(byID map[player.CanonicalID]*nameCandidate, year int) []player.CanonicalID {
	var out []player.CanonicalID
	for id, c := range byID {
		if r.opts.RequireBirthYear && year != 0 && len(c.years) > 0 && !c.years[year] {
			continue
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (r *Resolver) syntheticKey(name string, year int) string {
	if r.opts.RequireBirthYear && year != 0 {
		return name + "|" + strconv.Itoa(year)
	}
	return name
}

var yearPattern = regexp.MustCompile(`\b(1[89]\d{2}|20\d{2})\b`)

// BirthYear extracts a four digit year from a date of birth in any of the
// source formats ("1987-06-24", "Jun 24, 1987 (36)", "24.06.1987").
// Returns 0 when none is found.
func BirthYear(dob string) int {
	m := yearPattern.FindString(dob)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

func sortedKeys(m map[int]int) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
