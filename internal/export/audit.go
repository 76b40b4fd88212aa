package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/albapepper/scoracle-canon/internal/player"
)

// ReadAuditFile loads a prior run's correction audit. A missing file is an
// empty audit.
func ReadAuditFile(path string) ([]player.Correction, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit: %w", err)
	}
	defer f.Close()
	return ReadAudit(f)
}

// ReadAudit parses correction_audit.csv content. Files written before the
// action column existed are read as divisions.
func ReadAudit(r io.Reader) ([]player.Correction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"canonical_id", "field_name", "original_value", "corrected_value"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("audit is missing column %s", required)
		}
	}
	actionCol, hasAction := cols["action"]

	var out []player.Correction
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("audit line %d: %w", line, err)
		}
		get := func(col string) string {
			i := cols[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		id, err := player.ParseCanonicalID(get("canonical_id"))
		if err != nil {
			return nil, fmt.Errorf("audit line %d: %w", line, err)
		}
		field := player.Field(get("field_name"))
		if !field.IsKnown() {
			return nil, fmt.Errorf("audit line %d: unknown field %q", line, field)
		}
		original, err := decimal.NewFromString(get("original_value"))
		if err != nil {
			return nil, fmt.Errorf("audit line %d: original value: %w", line, err)
		}
		corrected, err := decimal.NewFromString(get("corrected_value"))
		if err != nil {
			return nil, fmt.Errorf("audit line %d: corrected value: %w", line, err)
		}
		action := player.ActionDivided
		if hasAction && actionCol < len(rec) && strings.TrimSpace(rec[actionCol]) != "" {
			action = strings.TrimSpace(rec[actionCol])
		}
		out = append(out, player.Correction{
			ID: id, Field: field, Original: original, Corrected: corrected, Action: action,
		})
	}
	return out, nil
}
