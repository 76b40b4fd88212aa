// Package scale detects and fixes monetary values that an upstream unit bug
// inflated by a constant factor.
//
// Detection is a threshold heuristic, not a proof, and only plain numbers are
// tested: display strings such as "€24.00m" are already in whole units. Every
// division is written to the correction audit with the original value so it
// can be reviewed and reversed, and the audit is consulted on re-runs so a
// value is never divided twice.
package scale

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// Options configure the corrector.
type Options struct {
	Fields    []player.Field
	Threshold decimal.Decimal // values at or above are suspect
	Factor    decimal.Decimal // suspect values are divided by this
}

// DefaultOptions: market values and fees at or above 1,000,000 are 100x too large.
func DefaultOptions() Options {
	return Options{
		Fields:    []player.Field{player.FieldMarketValue, player.FieldLatestFee},
		Threshold: decimal.NewFromInt(1_000_000),
		Factor:    decimal.NewFromInt(100),
	}
}

type auditKey struct {
	id    player.CanonicalID
	field player.Field
}

// Audit is the set of corrections already applied, by canonical id and field.
type Audit struct {
	entries map[auditKey]player.Correction
}

// NewAudit indexes prior corrections of every action. An already_corrected
// or normalized entry carries the live value in Corrected, so an audit written
// by a run that divided nothing still protects the value on the next run. The
// last entry for a key wins.
func NewAudit(prior []player.Correction) *Audit {
	a := &Audit{entries: make(map[auditKey]player.Correction, len(prior))}
	for _, c := range prior {
		a.entries[auditKey{c.ID, c.Field}] = c
	}
	return a
}

// Lookup returns the correction recorded for a field, if any.
func (a *Audit) Lookup(id player.CanonicalID, f player.Field) (player.Correction, bool) {
	if a == nil {
		return player.Correction{}, false
	}
	c, ok := a.entries[auditKey{id, f}]
	return c, ok
}

// Outcome is what one Apply call produced.
type Outcome struct {
	Corrections []player.Correction
	Failures    []player.ParseFailure
	Review      []player.ReviewItem
}

// Corrector applies scale corrections. A Corrector is not safe for concurrent
// use; the prior Audit may be shared.
type Corrector struct {
	opts    Options
	prior   *Audit
	applied *Audit
}

// NewCorrector creates a corrector. prior may be nil.
func NewCorrector(opts Options, prior *Audit) *Corrector {
	if opts.Factor.IsZero() {
		opts.Factor = DefaultOptions().Factor
	}
	return &Corrector{opts: opts, prior: prior, applied: NewAudit(nil)}
}

// Apply normalizes every configured monetary field in place. Parsed values
// are rewritten in plain decimal form; suspect plain values are divided by
// the factor after the audit entry is recorded. Display strings at or above
// the threshold are rewritten without dividing and logged as normalized.
// Values the audit already marks as corrected are left as they are.
func (c *Corrector) Apply(records []player.PlayerRecord) Outcome {
	var out Outcome
	for i := range records {
		rec := &records[i]
		for _, f := range c.opts.Fields {
			v, ok := rec.Fields[f]
			if !ok {
				continue
			}
			amount, ok := player.ParseMoney(v.Raw)
			if !ok {
				out.Failures = append(out.Failures, player.ParseFailure{
					Reference: recordRef(*rec),
					RawText:   v.Raw,
					Reason:    fmt.Sprintf("unparseable monetary value in %s", f),
				})
				continue
			}

			if done, ok := c.alreadyCorrected(rec.ID, f, amount); ok {
				out.Corrections = append(out.Corrections, player.Correction{
					ID:        rec.ID,
					Field:     f,
					Original:  done.Original,
					Corrected: amount,
					Action:    player.ActionAlreadyCorrected,
				})
				v.Raw = player.FormatMoney(amount)
				rec.Fields[f] = v
				continue
			}

			if amount.LessThan(c.opts.Threshold) {
				v.Raw = player.FormatMoney(amount)
				rec.Fields[f] = v
				continue
			}

			if player.IsDisplayMoney(v.Raw) {
				entry := player.Correction{
					ID:        rec.ID,
					Field:     f,
					Original:  amount,
					Corrected: amount,
					Action:    player.ActionNormalized,
				}
				c.applied.entries[auditKey{rec.ID, f}] = entry
				out.Corrections = append(out.Corrections, entry)
				v.Raw = player.FormatMoney(amount)
				rec.Fields[f] = v
				continue
			}

			corrected := amount.Div(c.opts.Factor)
			entry := player.Correction{
				ID:        rec.ID,
				Field:     f,
				Original:  amount,
				Corrected: corrected,
				Action:    player.ActionDivided,
			}
			c.applied.entries[auditKey{rec.ID, f}] = entry
			out.Corrections = append(out.Corrections, entry)

			v.Raw = player.FormatMoney(corrected)
			rec.Fields[f] = v

			if !corrected.LessThan(c.opts.Threshold) {
				out.Review = append(out.Review, player.ReviewItem{
					ID:    rec.ID,
					Field: f,
					Kind:  player.ReviewScaleStillHigh,
					Detail: fmt.Sprintf("divided %s by %s to %s, still at or above %s; may be a legitimately large value",
						amount, c.opts.Factor, corrected, c.opts.Threshold),
				})
			}
		}
	}
	return out
}

func (c *Corrector) alreadyCorrected(id player.CanonicalID, f player.Field, amount decimal.Decimal) (player.Correction, bool) {
	for _, a := range []*Audit{c.applied, c.prior} {
		if done, ok := a.Lookup(id, f); ok && done.Corrected.Equal(amount) {
			return done, true
		}
	}
	return player.Correction{}, false
}

func recordRef(rec player.PlayerRecord) string {
	if rec.Reference != "" {
		return rec.Reference
	}
	return rec.ID.String()
}
