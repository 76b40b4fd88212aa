package player

import (
	"strings"

	"github.com/shopspring/decimal"
)

var moneyCleaner = strings.NewReplacer(
	"€", "",
	"$", "",
	"£", "",
	",", "",
	" ", "",
	" ", "",
)

var moneySuffixes = []struct {
	suffix string
	factor int64
}{
	{"bn", 1_000_000_000},
	{"m", 1_000_000},
	{"th.", 1_000},
	{"k", 1_000},
}

// ParseMoney normalizes a monetary value from the formats the sources use.
//
// Bulk exports carry plain numbers ("25000000", "25000000.0"), scraped pages
// carry display strings ("€25.00m", "€500k", "€500Th."). Returns ok=false for
// placeholders such as "-" or "?" and anything else that is not a number.
func ParseMoney(raw string) (decimal.Decimal, bool) {
	d, _, ok := parseMoney(raw)
	return d, ok
}

// IsDisplayMoney reports whether raw is a display string: it carries a
// currency symbol or a magnitude suffix. Display strings are already in
// whole currency units and never carry the upstream scale bug.
func IsDisplayMoney(raw string) bool {
	_, display, ok := parseMoney(raw)
	return ok && display
}

func parseMoney(raw string) (decimal.Decimal, bool, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return decimal.Zero, false, false
	}
	display := strings.ContainsAny(s, "€$£")
	s = moneyCleaner.Replace(s)

	factor := int64(1)
	for _, sf := range moneySuffixes {
		if strings.HasSuffix(s, sf.suffix) {
			s = strings.TrimSuffix(s, sf.suffix)
			factor = sf.factor
			display = true
			break
		}
	}
	if s == "" {
		return decimal.Zero, false, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, false
	}
	return d.Mul(decimal.NewFromInt(factor)), display, true
}

// FormatMoney renders a monetary value without trailing zeros, the way the
// canonical CSV stores it.
func FormatMoney(d decimal.Decimal) string {
	return d.String()
}
