// Package merge combines the per-pass records of one canonical identity into
// a single record under an explicit, field-keyed precedence policy.
package merge

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Rule decides which pass wins when two passes carry a value for a field.
type Rule string

const (
	// LatestNonNull lets a later pass's non-null value replace an earlier one.
	LatestNonNull Rule = "latest_non_null"
	// FirstNonNull keeps the first value ever set. Used for identifying fields.
	FirstNonNull Rule = "first_non_null"
)

// Policy is the per-field rule table. Fields missing from Rules have no
// precedence rule; disagreements on them are escalated for review. Manual
// passes win over every rule.
type Policy struct {
	Rules map[player.Field]Rule

	// ManualSources names snapshots treated as manual corrections even when
	// the manifest does not flag them.
	ManualSources []string
}

// DefaultPolicy covers every canonical field: identifying fields are never
// overwritten once set, everything else follows latest non-null.
func DefaultPolicy() Policy {
	p := Policy{Rules: make(map[player.Field]Rule, len(player.Fields))}
	for _, f := range player.Fields {
		p.Rules[f] = LatestNonNull
	}
	p.Rules[player.FieldName] = FirstNonNull
	p.Rules[player.FieldDateOfBirth] = FirstNonNull
	return p
}

// Rule returns the rule for f and whether one exists.
func (p Policy) Rule(f player.Field) (Rule, bool) {
	r, ok := p.Rules[f]
	return r, ok
}

// IsManual reports whether a snapshot name is listed as a manual source.
func (p Policy) IsManual(source string) bool {
	for _, s := range p.ManualSources {
		if s == source {
			return true
		}
	}
	return false
}

// policyFile is the TOML shape:
//
//	manual_sources = ["fixes"]
//
//	[fields]
//	name = "first_non_null"
//	market_value = "latest_non_null"
type policyFile struct {
	ManualSources []string          `toml:"manual_sources"`
	Fields        map[string]string `toml:"fields"`
}

// LoadPolicy reads a policy table from a TOML file. Fields the file does not
// mention have no rule.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a TOML policy table.
func ParsePolicy(data []byte) (Policy, error) {
	var pf policyFile
	if err := toml.Unmarshal(data, &pf); err != nil {
		return Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	p := Policy{Rules: make(map[player.Field]Rule, len(pf.Fields))}
	for _, src := range pf.ManualSources {
		if src = strings.TrimSpace(src); src != "" {
			p.ManualSources = append(p.ManualSources, src)
		}
	}
	for name, rule := range pf.Fields {
		f := player.Field(strings.TrimSpace(name))
		if !f.IsKnown() {
			return Policy{}, fmt.Errorf("policy: unknown field %q", name)
		}
		r := Rule(strings.TrimSpace(strings.ToLower(rule)))
		if r != LatestNonNull && r != FirstNonNull {
			return Policy{}, fmt.Errorf("policy: field %q has unknown rule %q", name, rule)
		}
		p.Rules[f] = r
	}
	return p, nil
}

// Uncovered lists canonical fields without a rule, sorted.
func (p Policy) Uncovered() []player.Field {
	var out []player.Field
	for _, f := range player.Fields {
		if _, ok := p.Rules[f]; !ok {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
