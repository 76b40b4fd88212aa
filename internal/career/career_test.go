package career

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/scoracle-canon/internal/player"
)

func ip(v int) *int { return &v }

func TestParseRoundTrips(t *testing.T) {
	tests := []struct {
		text     string
		club     string
		from     *int
		to       *int
		duration *int
	}{
		{"Ajax (1998-2004)", "Ajax", ip(1998), ip(2004), ip(6)},
		{"Ajax (1998–2004)", "Ajax", ip(1998), ip(2004), ip(6)},
		{"Ajax (1998 — 2004)", "Ajax", ip(1998), ip(2004), ip(6)},
		{"Ajax (2005)", "Ajax", ip(2005), ip(2005), ip(1)},
		{"Ajax (11/2001-2002)", "Ajax", ip(2001), ip(2002), ip(1)},
		{"Ajax (07/1998 - 06/2004)", "Ajax", ip(1998), ip(2004), ip(6)},
		{"Ajax (1998-1998)", "Ajax", ip(1998), ip(1998), ip(0)},
		{"Ajax", "Ajax", nil, nil, nil},
		{"  Real Madrid C  ", "Real Madrid C", nil, nil, nil},
		{"Ajax (NED)", "Ajax (NED)", nil, nil, nil},
		{"Sporting CP (Lisbon) (2000-2003)", "Sporting CP (Lisbon)", ip(2000), ip(2003), ip(3)},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := NewParser(nil)
			got := p.Parse("ref", tt.text)
			assert.Equal(t, tt.club, got.Club)
			assert.Equal(t, tt.from, got.From)
			assert.Equal(t, tt.to, got.To)
			assert.Equal(t, tt.duration, got.Duration)
			assert.Empty(t, p.Failures())
			// A lone year is a one-year stint; explicit ranges span To-From.
			if got.From != nil && got.To != nil && *got.To != *got.From {
				assert.Equal(t, *got.To-*got.From, *got.Duration)
			}
			if got.Duration != nil {
				assert.GreaterOrEqual(t, *got.Duration, 0)
			}
		})
	}
}

func TestParseIsIdempotentOnCleanNames(t *testing.T) {
	p := NewParser(nil)
	first := p.Parse("ref", "Ajax (1998-2004)")
	second := p.Parse("ref", first.Club)

	assert.Equal(t, first.Club, second.Club)
	assert.Nil(t, second.From)
	assert.Nil(t, second.Duration)
	assert.Empty(t, p.Failures())
}

func TestParseFailuresAreLoggedNotFatal(t *testing.T) {
	tests := []struct {
		text   string
		club   string
		reason string
	}{
		{"Ajax (2004-1998)", "Ajax", "end year 1998 before start year 2004"},
		{"Ajax (1200-1204)", "Ajax", "out of range"},
		{"Ajax (0999)", "Ajax", "out of range"},
		{"Ajax (bis 2004)", "Ajax", "partial year token"},
		{"Ajax (98-04)", "Ajax", "partial year token"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p := NewParser(nil)
			got := p.Parse("/x/spieler/1", tt.text)
			assert.Equal(t, tt.club, got.Club)
			assert.Nil(t, got.From)
			assert.Nil(t, got.To)
			assert.Nil(t, got.Duration)
			assert.Equal(t, tt.text, got.Raw)

			require.Len(t, p.Failures(), 1)
			f := p.Failures()[0]
			assert.Equal(t, "/x/spieler/1", f.Reference)
			assert.Equal(t, tt.text, f.RawText)
			assert.Contains(t, f.Reason, tt.reason)
		})
	}
}

func TestParseField(t *testing.T) {
	p := NewParser(nil)
	stints := p.ParseField("ref", "Ajax (1998-2004); ; PSV (2005)")
	require.Len(t, stints, 2)
	assert.Equal(t, "Ajax", stints[0].Club)
	assert.Equal(t, "PSV", stints[1].Club)
	assert.Equal(t, 1, *stints[1].Duration)
}

func TestNormalizeClubName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ajax U19", "ajax"},
		{"Bayern München Jugend", "bayern munchen"},
		{"Real Madrid C", "real madrid"},
		{"Manchester City Youth", "manchester city"},
		{"Ajax (1998-2004)", "ajax"},
		{"Schalke 04 (bis 2010)", "schalke 04"},
		{"PSV", "psv"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeClubName(tt.in))
		})
	}
}

func TestClubDirectoryAnnotatesStints(t *testing.T) {
	dir := ClubDirectory{}
	dir.Add("Ajax Amsterdam", "Netherlands")
	dir.Add("Ajax Amsterdam", "Elsewhere")
	dir.Add("", "Nowhere")

	p := NewParser(dir)
	got := p.Parse("ref", "Ajax Amsterdam U17 (2001-2003)")
	assert.Equal(t, "Ajax Amsterdam U17", got.Club)
	assert.Equal(t, "Netherlands", got.Country)

	assert.Equal(t, "", p.Parse("ref", "Unknown FC").Country)
	assert.Len(t, dir, 1)
}

func TestAnnotateRewritesYouthClubField(t *testing.T) {
	records := []player.PlayerRecord{
		player.NewRecord(player.NumericID(9), player.SourceRow{
			Source:    "legacy",
			Pass:      3,
			Reference: "/x/spieler/9",
			Fields: map[player.Field]string{
				player.FieldYouthClub: "Ajax (1998-2004); PSV (2005)",
			},
		}),
		player.NewRecord(player.NumericID(10), player.SourceRow{Source: "legacy"}),
	}

	p := NewParser(nil)
	p.Annotate(records)

	require.Len(t, records[0].Stints, 2)
	assert.Equal(t, player.Value{Raw: "Ajax; PSV", Source: "legacy", Pass: 3}, records[0].Fields[player.FieldYouthClub])
	assert.Empty(t, records[1].Stints)

	// a second pass over clean names keeps the club list and finds no years
	p.Annotate(records)
	assert.Equal(t, "Ajax; PSV", records[0].Get(player.FieldYouthClub))
	assert.Nil(t, records[0].Stints[0].From)
	assert.Empty(t, p.Failures())
}
