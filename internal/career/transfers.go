package career

import (
	"sort"
	"strings"
	"time"

	"github.com/albapepper/scoracle-canon/internal/identity"
	"github.com/albapepper/scoracle-canon/internal/player"
)

// Youth estimate bounds. A player first seen moving at 12 or younger most
// likely joined earlier, so the span between moves is padded.
const (
	youthAgeLimit    = 23
	minYouthYears    = 1
	maxYouthYears    = 15
	earlyStartAge    = 12
	youngStartAge    = 16
	inferredYouthSrc = "transfers_under_23"
)

// Transfer is one move between clubs from a player's transfer history.
type Transfer struct {
	Date     time.Time
	FromClub string
	ToClub   string
}

// TransferIndex holds transfer histories by canonical id.
type TransferIndex map[player.CanonicalID][]Transfer

// Add appends one transfer.
func (idx TransferIndex) Add(id player.CanonicalID, t Transfer) {
	idx[id] = append(idx[id], t)
}

// sorted returns id's transfers oldest first.
func (idx TransferIndex) sorted(id player.CanonicalID) []Transfer {
	ts := append([]Transfer(nil), idx[id]...)
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].Date.Before(ts[j].Date) })
	return ts
}

// UseTransfers lets Annotate estimate youth years for stints whose text
// carries none and, when infer is set, derive youth clubs for records without
// a youth club field from the clubs involved in moves before age 23.
func (p *Parser) UseTransfers(idx TransferIndex, infer bool) {
	p.transfers = idx
	p.inferYouth = infer
}

// estimateYears fills Duration of year-less stints from the transfers that
// involve the stint's club.
func (p *Parser) estimateYears(rec *player.PlayerRecord, dob time.Time) {
	history := p.transfers.sorted(rec.ID)
	if len(history) == 0 {
		return
	}
	for k := range rec.Stints {
		s := &rec.Stints[k]
		if s.From != nil || s.To != nil || s.Duration != nil {
			continue
		}
		if years, ok := youthYears(s.Club, dob, history); ok {
			s.Duration = &years
			s.Estimated = true
		}
	}
}

// youthYears estimates the years spent at club from the ages at the first and
// last transfer involving it.
func youthYears(club string, dob time.Time, history []Transfer) (int, bool) {
	name := NormalizeClubName(club)
	if name == "" {
		return 0, false
	}
	var first, last *Transfer
	for i := range history {
		t := &history[i]
		if !involves(t, name) {
			continue
		}
		if first == nil {
			first = t
		}
		last = t
	}
	if first == nil {
		return 0, false
	}

	start, end := ageAt(dob, first.Date), ageAt(dob, last.Date)
	years := end - start
	switch {
	case start <= earlyStartAge:
		years += 2
	case start <= youngStartAge:
		years++
	}
	return min(max(years, minYouthYears), maxYouthYears), true
}

// involves matches on normalized names, so "Feyenoord U19" in the club text
// matches a move to or from "Feyenoord Rotterdam".
func involves(t *Transfer, name string) bool {
	for _, club := range []string{t.FromClub, t.ToClub} {
		if club != "" && strings.Contains(NormalizeClubName(club), name) {
			return true
		}
	}
	return false
}

// inferYouthClubs builds estimated stints from every club a player moved from
// or to before age 23, in transfer order.
func (p *Parser) inferYouthClubs(rec *player.PlayerRecord, dob time.Time) []player.CareerStint {
	seen := make(map[string]bool)
	var out []player.CareerStint
	for _, t := range p.transfers.sorted(rec.ID) {
		if ageAt(dob, t.Date) >= youthAgeLimit {
			continue
		}
		for _, club := range []string{t.FromClub, t.ToClub} {
			club = strings.TrimSpace(club)
			if club == "" || seen[club] {
				continue
			}
			seen[club] = true
			stint := player.CareerStint{Club: club, Raw: club, Estimated: true}
			if p.clubs != nil {
				stint.Country = p.clubs.Country(club)
			}
			out = append(out, stint)
		}
	}
	return out
}

// ageAt returns full years between dob and at.
func ageAt(dob, at time.Time) int {
	age := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		age--
	}
	return age
}

var dobLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// birthDate reads a date of birth in any of the source formats. A value that
// only yields a year is placed mid-year.
func birthDate(dob string) (time.Time, bool) {
	s := strings.TrimSpace(parenthetical.ReplaceAllString(dob, ""))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dobLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if y := identity.BirthYear(s); y != 0 {
		return time.Date(y, time.July, 1, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
