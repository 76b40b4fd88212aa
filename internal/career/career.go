// Package career extracts structured career stints from the free-text club
// fields of player records, e.g. "Ajax (1998-2004)".
package career

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Plausible year bounds for a career stint.
const (
	minYear = 1850
	maxYear = 2100
)

// dash matches hyphen, en dash and em dash.
const dash = `\s*[-–—]\s*`

// rule is one entry of the ordered interval grammar. build receives the regexp
// submatches and returns the stint; a non-nil error means the text matched but
// its numbers did not make sense.
type rule struct {
	name  string
	re    *regexp.Regexp
	build func(m []string) (player.CareerStint, error)
}

// rules are tried most specific first; the first match wins. Adding a new
// interval format is adding an entry here.
var rules = []rule{
	{
		name: "range",
		re:   regexp.MustCompile(`^(.+?)\s*\(\s*(\d{4})` + dash + `(\d{4})\s*\)$`),
		build: func(m []string) (player.CareerStint, error) {
			return rangeStint(m[1], m[2], m[3])
		},
	},
	{
		name: "single",
		re:   regexp.MustCompile(`^(.+?)\s*\(\s*(\d{4})\s*\)$`),
		build: func(m []string) (player.CareerStint, error) {
			y, err := parseYear(m[2])
			if err != nil {
				return player.CareerStint{Club: strings.TrimSpace(m[1])}, err
			}
			one := 1
			return player.CareerStint{Club: strings.TrimSpace(m[1]), From: &y, To: intPtr(y), Duration: &one}, nil
		},
	},
	{
		name: "prefixed range",
		re:   regexp.MustCompile(`^(.+?)\s*\([^)]*?(\d{4})` + dash + `(\d{4})[^)]*\)$`),
		build: func(m []string) (player.CareerStint, error) {
			return rangeStint(m[1], m[2], m[3])
		},
	},
	{
		name: "embedded years",
		re:   regexp.MustCompile(`^(.+?)\s*\(([^)]*)\)$`),
		build: func(m []string) (player.CareerStint, error) {
			years := fourDigits.FindAllString(m[2], -1)
			if len(years) < 2 {
				return player.CareerStint{}, errNoMatch
			}
			return rangeStint(m[1], years[0], years[1])
		},
	},
}

var (
	fourDigits    = regexp.MustCompile(`\d{4}`)
	parenthetical = regexp.MustCompile(`\s*\(([^)]*)\)\s*$`)
	digits        = regexp.MustCompile(`\d`)
	errNoMatch    = errors.New("no interval")
)

// Parser turns club text into stints and collects the fragments it could not
// fully interpret.
type Parser struct {
	clubs      ClubDirectory
	failures   []player.ParseFailure
	transfers  TransferIndex
	inferYouth bool
}

// NewParser creates a parser. clubs may be nil.
func NewParser(clubs ClubDirectory) *Parser {
	return &Parser{clubs: clubs}
}

// Failures returns the parse failures collected so far.
func (p *Parser) Failures() []player.ParseFailure {
	return p.failures
}

// Parse interprets one stint. ref identifies the record in failure logs.
// Text without a parenthesized year passes through as the club name, so
// parsing an already clean name is a no-op.
func (p *Parser) Parse(ref, text string) player.CareerStint {
	raw := strings.TrimSpace(text)
	stint, reason := parseStint(raw)
	if reason != "" {
		p.failures = append(p.failures, player.ParseFailure{Reference: ref, RawText: raw, Reason: reason})
	}
	if p.clubs != nil {
		stint.Country = p.clubs.Country(stint.Club)
	}
	return stint
}

// ParseField splits a multi-valued club field on ";" and parses each part.
func (p *Parser) ParseField(ref, text string) []player.CareerStint {
	var out []player.CareerStint
	for _, part := range strings.Split(text, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, p.Parse(ref, part))
	}
	return out
}

// parseStint applies the rule table. reason is non-empty when the text should
// be logged as a parse failure.
func parseStint(raw string) (player.CareerStint, string) {
	for _, r := range rules {
		m := r.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		stint, err := r.build(m)
		if errors.Is(err, errNoMatch) {
			continue
		}
		stint.Raw = raw
		if err != nil {
			stint.From, stint.To, stint.Duration = nil, nil, nil
			return stint, fmt.Sprintf("%s interval: %v", r.name, err)
		}
		return stint, ""
	}

	// Passthrough. A parenthetical holding digits was meant to be a year and
	// is worth a look; anything else is part of the club name.
	if m := parenthetical.FindStringSubmatch(raw); m != nil && digits.MatchString(m[1]) {
		club := strings.TrimSpace(parenthetical.ReplaceAllString(raw, ""))
		if club == "" {
			club = raw
		}
		return player.CareerStint{Club: club, Raw: raw}, "partial year token: " + strings.TrimSpace(m[1])
	}
	return player.CareerStint{Club: raw, Raw: raw}, ""
}

func rangeStint(club, fromText, toText string) (player.CareerStint, error) {
	stint := player.CareerStint{Club: strings.TrimSpace(club)}
	from, err := parseYear(fromText)
	if err != nil {
		return stint, err
	}
	to, err := parseYear(toText)
	if err != nil {
		return stint, err
	}
	if to < from {
		return stint, fmt.Errorf("end year %d before start year %d", to, from)
	}
	d := to - from
	stint.From, stint.To, stint.Duration = &from, &to, &d
	return stint, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("year %q: %w", s, err)
	}
	if y < minYear || y > maxYear {
		return 0, fmt.Errorf("year %d out of range", y)
	}
	return y, nil
}

func intPtr(v int) *int {
	return &v
}

// Annotate parses the youth club field of every record into Stints and
// rewrites the field to the bare club names, keeping its provenance. With a
// transfer index, year-less stints get an estimated duration and, if
// enabled, records without a youth club get one inferred from transfers.
func (p *Parser) Annotate(records []player.PlayerRecord) {
	for i := range records {
		rec := &records[i]
		dob, hasDOB := birthDate(rec.Get(player.FieldDateOfBirth))
		v, ok := rec.Fields[player.FieldYouthClub]
		if !ok {
			if p.inferYouth && hasDOB {
				p.annotateInferred(rec, dob)
			}
			continue
		}
		ref := rec.Reference
		if ref == "" {
			ref = rec.ID.String()
		}
		rec.Stints = p.ParseField(ref, v.Raw)
		if len(rec.Stints) == 0 {
			delete(rec.Fields, player.FieldYouthClub)
			continue
		}
		if hasDOB {
			p.estimateYears(rec, dob)
		}
		v.Raw = joinClubs(rec.Stints)
		rec.Fields[player.FieldYouthClub] = v
	}
}

func (p *Parser) annotateInferred(rec *player.PlayerRecord, dob time.Time) {
	stints := p.inferYouthClubs(rec, dob)
	if len(stints) == 0 {
		return
	}
	rec.Stints = stints
	rec.Fields[player.FieldYouthClub] = player.Value{Raw: joinClubs(stints), Source: inferredYouthSrc, Pass: rec.Pass}
}

func joinClubs(stints []player.CareerStint) string {
	names := make([]string, len(stints))
	for k, s := range stints {
		names[k] = s.Club
	}
	return strings.Join(names, "; ")
}
