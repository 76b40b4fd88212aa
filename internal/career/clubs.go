package career

import (
	"regexp"
	"strings"

	"github.com/albapepper/scoracle-canon/internal/identity"
)

// Age-group and reserve-team markers that the sources append to a parent
// club's name ("Ajax U19", "Bayern München Jugend", "Real Madrid C").
var clubSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*\(bis \d{4}\)`),
	regexp.MustCompile(`\s*\([^)]*\)`),
	regexp.MustCompile(`\s*\d{4}\s*[-–]\s*\d{4}`),
	regexp.MustCompile(`(?i)\s*\bU\d+\b`),
	regexp.MustCompile(`(?i)\s*\bYouth\b`),
	regexp.MustCompile(`(?i)\s*\bNext Gen\b`),
	regexp.MustCompile(`(?i)\s*\bJugend\b`),
	regexp.MustCompile(`(?i)\s+[BCD]\s*$`),
}

// NormalizeClubName reduces a youth or reserve team name to its parent club
// and folds it for lookups. It is only used as a lookup key; stints keep the
// club name as written.
func NormalizeClubName(name string) string {
	for _, re := range clubSuffixes {
		name = re.ReplaceAllString(name, "")
	}
	return identity.NormalizeName(strings.TrimSpace(name))
}

// ClubDirectory maps normalized club names to the club's country.
type ClubDirectory map[string]string

// Add registers a club. Empty names or countries are ignored and the first
// country registered for a name is kept.
func (d ClubDirectory) Add(name, country string) {
	key := NormalizeClubName(name)
	country = strings.TrimSpace(country)
	if key == "" || country == "" {
		return
	}
	if _, ok := d[key]; !ok {
		d[key] = country
	}
}

// Country returns the country of the parent club, or "".
func (d ClubDirectory) Country(club string) string {
	if len(d) == 0 {
		return ""
	}
	return d[NormalizeClubName(club)]
}
