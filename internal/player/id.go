package player

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const syntheticPrefix = "name:"

// CanonicalID is the stable identity key for one real-world player. It is
// either a numeric id taken from a profile reference or a synthetic id derived
// from a normalized name. The two spaces never overlap.
type CanonicalID struct {
	num int64
	syn string
}

// NumericID wraps an id extracted from a reference string.
func NumericID(n int64) CanonicalID {
	return CanonicalID{num: n}
}

// SyntheticID derives a deterministic id from a normalized name key.
func SyntheticID(key string) CanonicalID {
	sum := sha256.Sum256([]byte(key))
	return CanonicalID{syn: hex.EncodeToString(sum[:8])}
}

// ParseCanonicalID parses the String form back into an id.
func ParseCanonicalID(s string) (CanonicalID, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, syntheticPrefix); ok {
		if len(rest) != 16 {
			return CanonicalID{}, fmt.Errorf("invalid synthetic id %q", s)
		}
		if _, err := hex.DecodeString(rest); err != nil {
			return CanonicalID{}, fmt.Errorf("invalid synthetic id %q: %w", s, err)
		}
		return CanonicalID{syn: rest}, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return CanonicalID{}, fmt.Errorf("invalid canonical id %q", s)
	}
	return NumericID(n), nil
}

// IsZero reports whether the id is unset.
func (id CanonicalID) IsZero() bool {
	return id.num == 0 && id.syn == ""
}

// IsSynthetic reports whether the id was derived from a name.
func (id CanonicalID) IsSynthetic() bool {
	return id.syn != ""
}

// Numeric returns the numeric id and whether the id is numeric.
func (id CanonicalID) Numeric() (int64, bool) {
	if id.syn != "" || id.num == 0 {
		return 0, false
	}
	return id.num, true
}

func (id CanonicalID) String() string {
	if id.syn != "" {
		return syntheticPrefix + id.syn
	}
	if id.num == 0 {
		return ""
	}
	return strconv.FormatInt(id.num, 10)
}

// Less orders numeric ids numerically before synthetic ids.
func (id CanonicalID) Less(other CanonicalID) bool {
	switch {
	case id.syn == "" && other.syn == "":
		return id.num < other.num
	case id.syn == "":
		return true
	case other.syn == "":
		return false
	default:
		return id.syn < other.syn
	}
}
