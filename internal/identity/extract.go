// Package identity maps source rows onto canonical player identities.
//
// Resolution runs in two ordered phases. Rows whose reference string carries a
// profile id are assigned that id and never reconsidered. The remaining rows
// fall back to their normalized name.
package identity

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// DefaultSegments are the profile path segments that precede a player id on
// the source site, e.g. "/lionel-messi/profil/spieler/28003".
var DefaultSegments = []string{"spieler"}

// Extractor pulls a CanonicalID out of a reference string.
type Extractor struct {
	pattern *regexp.Regexp
}

// NewExtractor builds an extractor matching "/<segment>/<digits>" for any of
// the given segments. Empty segments are ignored; no segments means defaults.
func NewExtractor(segments ...string) *Extractor {
	quoted := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(strings.TrimSpace(s), "/")
		if s != "" {
			quoted = append(quoted, regexp.QuoteMeta(s))
		}
	}
	if len(quoted) == 0 {
		for _, s := range DefaultSegments {
			quoted = append(quoted, regexp.QuoteMeta(s))
		}
	}
	return &Extractor{
		pattern: regexp.MustCompile(`/(?:` + strings.Join(quoted, "|") + `)/(\d+)`),
	}
}

// Extract returns the id embedded in ref. Empty input, no match and digit runs
// that overflow int64 all yield ok=false; callers fall back to name matching.
func (e *Extractor) Extract(ref string) (player.CanonicalID, bool) {
	if ref == "" {
		return player.CanonicalID{}, false
	}
	m := e.pattern.FindStringSubmatch(ref)
	if m == nil {
		return player.CanonicalID{}, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return player.CanonicalID{}, false
	}
	return player.NumericID(n), true
}
